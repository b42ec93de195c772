// Package types defines the shared domain model for the statute
// knowledge base: raw document structure, parsed statute records,
// transition mappings between superseded and current law, index chunks,
// and the error kinds exchanged between pipeline stages.
//
// Types here are plain records validated at construction; pipeline
// stages communicate through them instead of loosely shaped maps.
package types
