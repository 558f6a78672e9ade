// Package main provides the entry point for the imagecrawl CLI.
//
// imagecrawl builds a labeled image dataset from web image search. For each
// classification it pages through the search results of its terms, downloads
// every result and stores it under the classification unless an image with
// identical content is already stored.
//
// Usage:
//
//	imagecrawl crawl
//	imagecrawl crawl --term ios=iphone --term android="galaxy s8"
//
// See --help for all available options.
package main

// main is the entry point for imagecrawl.
func main() {
	Execute()
}
