package model

import (
	"fmt"
	"time"
)

// TermState is the traversal state of one (classification, term) pair.
//
//	Start -> Paginating -> Paginating | Done | Aborted
type TermState int

const (
	// TermStart is the initial state; the page offset is 1.
	TermStart TermState = iota

	// TermPaginating means pages are being fetched and processed.
	TermPaginating

	// TermDone means the cursor ran out or the page ceiling was reached.
	TermDone

	// TermAborted means a pagination error (or cancellation) stopped the term.
	TermAborted
)

// String returns the state name.
func (s TermState) String() string {
	switch s {
	case TermStart:
		return "start"
	case TermPaginating:
		return "paginating"
	case TermDone:
		return "done"
	case TermAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText lets TermState render as its name in JSON reports.
func (s TermState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *TermState) UnmarshalText(text []byte) error {
	for _, st := range []TermState{TermStart, TermPaginating, TermDone, TermAborted} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown term state %q", text)
}

// IsTerminal reports whether no further transitions are possible.
func (s TermState) IsTerminal() bool {
	return s == TermDone || s == TermAborted
}

// TermResult records what happened while traversing one search term.
type TermResult struct {
	Term           string         `json:"term"`
	Classification Classification `json:"classification"`
	State          TermState      `json:"state"`

	// Pages is the number of search result pages fetched successfully.
	Pages int `json:"pages"`

	Stored    int `json:"stored"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`

	// Err is set when State is TermAborted.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// Record adds one candidate outcome to the counters.
func (r *TermResult) Record(o Outcome) {
	switch o {
	case OutcomeStored:
		r.Stored++
	case OutcomeDuplicate:
		r.Duplicate++
	default:
		r.Failed++
	}
}

// Candidates returns the number of candidates processed.
func (r *TermResult) Candidates() int {
	return r.Stored + r.Duplicate + r.Failed
}

// Abort moves the result to TermAborted and records the cause.
func (r *TermResult) Abort(err error) {
	r.State = TermAborted
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// RunSummary aggregates the results of a whole crawl run.
type RunSummary struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Terms      []TermResult `json:"terms"`
}

// NewRunSummary starts a summary at the current time.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		StartedAt: time.Now(),
		Terms:     make([]TermResult, 0),
	}
}

// Add appends a finished term.
func (s *RunSummary) Add(r TermResult) {
	s.Terms = append(s.Terms, r)
}

// Finish stamps the end time.
func (s *RunSummary) Finish() {
	s.FinishedAt = time.Now()
}

// Elapsed returns the wall time of the run.
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Totals returns the summed counters across all terms.
func (s *RunSummary) Totals() TermResult {
	var t TermResult
	for _, r := range s.Terms {
		t.Pages += r.Pages
		t.Stored += r.Stored
		t.Duplicate += r.Duplicate
		t.Failed += r.Failed
	}
	return t
}

// Aborted returns the terms that ended in TermAborted.
func (s *RunSummary) Aborted() []TermResult {
	aborted := make([]TermResult, 0)
	for _, r := range s.Terms {
		if r.State == TermAborted {
			aborted = append(aborted, r)
		}
	}
	return aborted
}

// ByClassification sums counters per classification, preserving first-seen order.
func (s *RunSummary) ByClassification() ([]Classification, map[Classification]TermResult) {
	order := make([]Classification, 0)
	sums := make(map[Classification]TermResult)
	for _, r := range s.Terms {
		agg, ok := sums[r.Classification]
		if !ok {
			order = append(order, r.Classification)
			agg.Classification = r.Classification
		}
		agg.Pages += r.Pages
		agg.Stored += r.Stored
		agg.Duplicate += r.Duplicate
		agg.Failed += r.Failed
		sums[r.Classification] = agg
	}
	return order, sums
}
