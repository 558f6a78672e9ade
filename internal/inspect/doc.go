// Package inspect extracts EXIF metadata from stored images.
//
// Only a small set of descriptive tags is kept (camera make and model,
// software, lens, original timestamp). Extraction is best effort. Images
// without EXIF, or with EXIF the parser cannot read, never affect whether
// an image is stored.
package inspect
