// Package dedup turns image candidates into stored, deduplicated files.
//
// For each candidate the Deduplicator fetches the primary URL (falling back
// to the thumbnail once), digests the bytes, and consults the Hash Index.
// Unseen content is written to the classification's bucket under a fresh
// identifier and only then registered, so the index never points at a file
// that does not exist. If registration loses a race to a concurrent writer
// of the same content, the just-written file is removed and the candidate
// counts as a duplicate.
//
// Every failure is contained to its candidate: Process never returns an
// error, only a Result whose Outcome is Failed.
package dedup
