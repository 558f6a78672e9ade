// Package config provides configuration structures and utilities for imagecrawl.
// It defines the directory layout, network settings, the crawl plan mapping
// classifications to search terms, and the search API credentials.
package config
