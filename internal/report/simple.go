package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/imagecrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text summaries.
type SimpleWriter struct {
	baseWriter

	// verbose lists every term, not just the aborted ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every term in the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeClassifications(&sb, summary)
	w.writeTerms(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, ruleWidth))
	sb.WriteString("\n")
}

// writeHeader writes run time and the overall counters.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	totals := summary.Totals()

	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                        IMAGECRAWL RUN SUMMARY\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Started:    %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:    %s\n", summary.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Terms:      %d (%d aborted)\n", len(summary.Terms), len(summary.Aborted()))
	fmt.Fprintf(sb, "Pages:      %d\n", totals.Pages)
	fmt.Fprintf(sb, "Stored:     %d\n", totals.Stored)
	fmt.Fprintf(sb, "Duplicate:  %d\n", totals.Duplicate)
	fmt.Fprintf(sb, "Failed:     %d\n", totals.Failed)
	sb.WriteString("\n")
}

// writeClassifications writes per-classification counters.
func (w *SimpleWriter) writeClassifications(sb *strings.Builder, summary *model.RunSummary) {
	order, sums := summary.ByClassification()
	if len(order) == 0 {
		return
	}

	rule(sb, "-")
	sb.WriteString("CLASSIFICATIONS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, class := range order {
		s := sums[class]
		fmt.Fprintf(sb, "  %-20s stored=%-6d duplicate=%-6d failed=%-6d pages=%d\n",
			truncateString(class.String(), 20), s.Stored, s.Duplicate, s.Failed, s.Pages)
	}
	sb.WriteString("\n")
}

// writeTerms writes aborted terms, or all terms when verbose.
func (w *SimpleWriter) writeTerms(sb *strings.Builder, summary *model.RunSummary) {
	terms := summary.Aborted()
	heading := "ABORTED TERMS"
	if w.verbose {
		terms = summary.Terms
		heading = "TERMS"
	}
	if len(terms) == 0 {
		return
	}

	rule(sb, "-")
	sb.WriteString(heading + "\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, r := range terms {
		fmt.Fprintf(sb, "  [%s] %s/%s: pages=%d stored=%d duplicate=%d failed=%d\n",
			title(r.State.String()), r.Classification, r.Term, r.Pages, r.Stored, r.Duplicate, r.Failed)
		if r.ErrorMessage != "" {
			fmt.Fprintf(sb, "      error: %s\n", r.ErrorMessage)
		}
	}
	sb.WriteString("\n")
}
