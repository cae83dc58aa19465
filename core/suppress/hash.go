package suppress

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of fragment or message content.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:8])
}

// Domain keys are the ASCII domain name zero-padded to 32 bytes so that a
// fragment and a message with the same text never share a hash.
var (
	fragmentDomainKey = [32]byte{
		'e', 'm', 'a', '.', 'l', 'e', 's', 's', 'o', 'n', '.', 'f', 'r', 'a', 'g', 'm',
		'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	messageDomainKey = [32]byte{
		'e', 'm', 'a', '.', 'l', 'e', 's', 's', 'o', 'n', '.', 'm', 'e', 's', 's', 'a',
		'g', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashFragment returns the content hash keying suppression for a fragment.
func HashFragment(fragment string) Hash {
	return keyedHash(fragmentDomainKey, fragment)
}

func hashMessage(message string) Hash {
	return keyedHash(messageDomainKey, message)
}

func keyedHash(key [32]byte, data string) Hash {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("suppress: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(data))

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
