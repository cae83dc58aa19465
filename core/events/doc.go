// Package events defines the typed live lesson event contract.
//
// The inbound stream is newline-delimited JSON; every record carries a
// "type" discriminator and, for kinds with a payload, an object under a key
// named after the kind.
//
// Semantics used across the package:
//
//   - Render: a visual program (scene fragment) plus presentation metadata.
//   - Speak: narration text and an optional audio reference.
//   - Meta: out-of-band lesson state (slide position, repair notices).
//   - Final/Done: lifecycle boundaries ending the loading phase.
//   - Error: terminal protocol failure for the current attempt.
//
// lifecycle events
//
//   - Start (start): the server accepted the request.
//   - Session (session): session identity for the attempt.
//   - Heartbeat (heartbeat): keep-alive, carries nothing.
//   - Final (final): the lesson content is complete; may carry a summary.
//   - Done (done): the stream is complete.
//
// content events
//
//   - Render (render): code, language, title, markdown, runtime hints.
//   - Speak (speak): text, audio_url, duration_seconds, voice, model, words.
//   - Meta (meta): slide, timeline, repairing, fixed_code.
//
// failure events
//
//   - Error (error): message describing why the attempt failed.
package events
