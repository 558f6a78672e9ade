package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/imagecrawl/internal/model"
)

// JSONWriter outputs summaries in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// version is reported alongside the summary.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithVersion records the program version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the JSON document written by JSONWriter.
type JSONReport struct {
	Version         string                  `json:"version,omitempty"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	ElapsedSeconds  float64                 `json:"elapsed_seconds"`
	Totals          Totals                  `json:"totals"`
	Classifications []ClassificationSummary `json:"classifications"`
	Terms           []model.TermResult      `json:"terms"`
}

// Totals are run-wide counters.
type Totals struct {
	Terms     int `json:"terms"`
	Aborted   int `json:"aborted"`
	Pages     int `json:"pages"`
	Stored    int `json:"stored"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// ClassificationSummary are counters for one classification.
type ClassificationSummary struct {
	Classification model.Classification `json:"classification"`
	Pages          int                  `json:"pages"`
	Stored         int                  `json:"stored"`
	Duplicate      int                  `json:"duplicate"`
	Failed         int                  `json:"failed"`
}

// NewJSONReport builds the JSON document for summary.
func NewJSONReport(summary *model.RunSummary, version string) *JSONReport {
	t := summary.Totals()
	order, sums := summary.ByClassification()

	classes := make([]ClassificationSummary, 0, len(order))
	for _, c := range order {
		s := sums[c]
		classes = append(classes, ClassificationSummary{
			Classification: c,
			Pages:          s.Pages,
			Stored:         s.Stored,
			Duplicate:      s.Duplicate,
			Failed:         s.Failed,
		})
	}

	return &JSONReport{
		Version:        version,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		ElapsedSeconds: summary.Elapsed().Seconds(),
		Totals: Totals{
			Terms:     len(summary.Terms),
			Aborted:   len(summary.Aborted()),
			Pages:     t.Pages,
			Stored:    t.Stored,
			Duplicate: t.Duplicate,
			Failed:    t.Failed,
		},
		Classifications: classes,
		Terms:           summary.Terms,
	}
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *model.RunSummary) (int, error) {
	return w.writeJSON(NewJSONReport(summary, w.version))
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
