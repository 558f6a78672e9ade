package report

import (
	"io"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imagecrawl/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcomes(md, summary)
	w.writeClassifications(md, summary)
	w.writeTerms(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("imagecrawl Run Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed().Round(time.Millisecond).String()},
			{"Terms", itoa(len(summary.Terms))},
			{"Aborted Terms", itoa(len(summary.Aborted()))},
			{"Pages", itoa(summary.Totals().Pages)},
		},
	})
	md.PlainText("")
}

// writeOutcomes writes the outcome table, a pie chart and an alert.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, summary *model.RunSummary) {
	t := summary.Totals()

	md.H2("Outcomes")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Stored", itoa(t.Stored)},
			{"Duplicate", itoa(t.Duplicate)},
			{"Failed", itoa(t.Failed)},
			{"**Total**", "**" + itoa(t.Candidates()) + "**"},
		},
	})
	md.PlainText("")

	if t.Candidates() > 0 {
		w.writePieChart(md, t)
	}

	aborted := len(summary.Aborted())
	switch {
	case aborted > 0:
		md.Warningf("%d term(s) aborted before their last page.", aborted)
	case t.Failed > 0:
		md.Notef("%d candidate(s) could not be fetched or stored.", t.Failed)
	default:
		md.Tip("All terms completed.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of candidate outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, t model.TermResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Candidate Outcomes"),
		piechart.WithShowData(true),
	)

	if t.Stored > 0 {
		chart.LabelAndIntValue("Stored", uint64(t.Stored))
	}
	if t.Duplicate > 0 {
		chart.LabelAndIntValue("Duplicate", uint64(t.Duplicate))
	}
	if t.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(t.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeClassifications writes per-classification counters.
func (w *MarkdownWriter) writeClassifications(md *markdown.Markdown, summary *model.RunSummary) {
	order, sums := summary.ByClassification()

	md.H2("Classifications")
	md.PlainText("")
	if len(order) == 0 {
		md.PlainText("No terms were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(order))
	for _, c := range order {
		s := sums[c]
		rows = append(rows, []string{
			"`" + c.String() + "`",
			itoa(s.Pages),
			itoa(s.Stored),
			itoa(s.Duplicate),
			itoa(s.Failed),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Pages", "Stored", "Duplicate", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTerms writes one row per term.
func (w *MarkdownWriter) writeTerms(md *markdown.Markdown, summary *model.RunSummary) {
	if len(summary.Terms) == 0 {
		return
	}

	md.H2("Terms")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Terms))
	for _, r := range summary.Terms {
		errText := "-"
		if r.ErrorMessage != "" {
			errText = truncateString(r.ErrorMessage, 60)
		}
		rows = append(rows, []string{
			"`" + r.Classification.String() + "`",
			r.Term,
			title(r.State.String()),
			itoa(r.Pages),
			itoa(r.Stored),
			itoa(r.Duplicate),
			itoa(r.Failed),
			errText,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Term", "State", "Pages", "Stored", "Duplicate", "Failed", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by imagecrawl*")
}
