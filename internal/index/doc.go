// Package index provides the persistent content-digest index for imagecrawl.
//
// The Index maps a ContentDigest (raw 32 bytes) to the StoredIdentifier
// (raw 16 bytes) of the file holding that content. It is append-only: a
// digest is registered exactly once, at first sighting, and never updated
// or removed.
//
// The backing store is a single SQLite file (via modernc.org/sqlite, no cgo)
// opened with one connection and WAL journaling. Writes are additionally
// serialized by a mutex, so the index is safe for one writer and many
// readers within a process. Cross-process writers are not supported.
//
// Register is an atomic insert-if-absent; callers may still call Contains
// first to skip the storage write for known content.
package index
