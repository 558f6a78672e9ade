// Package report renders crawl run summaries.
//
// Writers for different output formats share the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured JSON for tooling
//   - MarkdownWriter: Markdown with tables and a mermaid outcome chart
//
// Writers implement the Writer interface, so they can be used
// interchangeably and composed with MultiWriter.
package report
