// Package sandbox compiles untrusted visual fragments into components that
// can only draw through an explicit capability set.
//
// A fragment is data, not code: a YAML or JSONC scene document whose
// "default" entry describes a canvas and a tree of nodes. Node kinds map
// one-to-one onto the drawing, diagram and URL capabilities; attribute
// values may be "=expr" expressions evaluated against the render context
// (time, playback, captions, slide, timeline, words) and a handful of pure
// math helpers. Anything else, including identifiers outside that
// environment, fails closed at compile time.
//
// Compile and Instantiate are separate steps so the visual host can
// re-instantiate on every render-context change without reparsing; Load
// runs both as one fallible operation.
package sandbox
