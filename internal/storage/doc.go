// Package storage writes crawl output to the filesystem.
//
// ImageStore keeps one directory per classification ("bucket"), each file
// named by its StoredIdentifier and holding the exact fetched bytes. Files
// are written to a temporary file and then linked into place, so a reader
// never observes a partial image, and an existing file is never replaced.
//
// QueryLog persists every search response verbatim, one file per page,
// named by a strictly increasing timestamp. It is write-only: nothing in
// imagecrawl reads it back.
package storage
