package crawler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imagecrawl/internal/dedup"
	"github.com/nao1215/imagecrawl/internal/model"
	"github.com/nao1215/imagecrawl/internal/search"
)

// Paginator fetches one page of search results.
type Paginator interface {
	Query(ctx context.Context, term string, class model.Classification, start int) (*search.Page, error)
}

// Processor turns one candidate into a stored, duplicate or failed image.
type Processor interface {
	Process(ctx context.Context, c model.Candidate, class model.Classification) dedup.Result
}

// QueryLog persists raw search responses.
type QueryLog interface {
	Write(raw []byte) (string, error)
}

// Recorder observes pages and finished terms.
type Recorder interface {
	PageFetched(class model.Classification, elapsed time.Duration)
	TermFinished(state model.TermState)
}

// Orchestrator runs crawl plans.
type Orchestrator struct {
	paginator   Paginator
	processor   Processor
	queryLog    QueryLog
	concurrency int
	logger      *slog.Logger
	metrics     Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets how many candidates of a page are processed at once.
// Default is 1 (sequential).
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records pages and term states.
func WithMetrics(r Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = r
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(p Paginator, proc Processor, ql QueryLog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		paginator:   p,
		processor:   proc,
		queryLog:    ql,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes every term of plan in order and returns the summary.
// Aborted terms are recorded and do not stop the run. After ctx is done the
// remaining terms are recorded as aborted without issuing requests.
func (o *Orchestrator) Run(ctx context.Context, plan []model.SearchTerm) *model.RunSummary {
	summary := model.NewRunSummary()

	o.logger.Info("starting crawl",
		"terms", len(plan),
		"concurrency", o.concurrency,
	)

	for i, st := range plan {
		o.logger.Info("crawling term",
			"classification", st.Classification.String(),
			"term", st.Term,
			"index", i+1,
			"total", len(plan),
		)
		summary.Add(o.RunTerm(ctx, st))
	}

	summary.Finish()
	totals := summary.Totals()
	o.logger.Info("crawl complete",
		"terms", len(summary.Terms),
		"aborted", len(summary.Aborted()),
		"pages", totals.Pages,
		"stored", totals.Stored,
		"duplicate", totals.Duplicate,
		"failed", totals.Failed,
		"elapsed", summary.Elapsed(),
	)
	return summary
}

// RunTerm paginates one term to completion or abort.
func (o *Orchestrator) RunTerm(ctx context.Context, st model.SearchTerm) model.TermResult {
	res := model.TermResult{
		Term:           st.Term,
		Classification: st.Classification,
		State:          model.TermStart,
	}
	start := search.FirstStart
	res.State = model.TermPaginating

	for res.State == model.TermPaginating {
		if err := ctx.Err(); err != nil {
			res.Abort(err)
			break
		}

		began := time.Now()
		page, err := o.paginator.Query(ctx, st.Term, st.Classification, start)
		if err != nil {
			o.logger.Warn("term aborted",
				"classification", st.Classification.String(),
				"term", st.Term,
				"start", start,
				"error", err,
			)
			res.Abort(err)
			break
		}
		res.Pages++

		if path, err := o.queryLog.Write(page.Raw); err != nil {
			o.logger.Warn("failed to persist search response",
				"classification", st.Classification.String(),
				"term", st.Term,
				"start", start,
				"error", err,
			)
		} else {
			o.logger.Debug("search response persisted", "path", path)
		}

		for _, r := range o.processPage(ctx, page.Candidates, st.Classification) {
			res.Record(r.Outcome)
		}
		if o.metrics != nil {
			o.metrics.PageFetched(st.Classification, time.Since(began))
		}

		if !page.HasNext {
			res.State = model.TermDone
			break
		}
		start = page.NextStart
	}

	if o.metrics != nil {
		o.metrics.TermFinished(res.State)
	}
	o.logger.Info("term finished",
		"classification", st.Classification.String(),
		"term", st.Term,
		"state", res.State.String(),
		"pages", res.Pages,
		"stored", res.Stored,
		"duplicate", res.Duplicate,
		"failed", res.Failed,
	)
	return res
}

// processPage processes every candidate and returns once all have finished.
// Results are in candidate order.
func (o *Orchestrator) processPage(ctx context.Context, candidates []model.Candidate, class model.Classification) []dedup.Result {
	results := make([]dedup.Result, len(candidates))

	if o.concurrency <= 1 {
		for i, c := range candidates {
			results[i] = o.processor.Process(ctx, c, class)
		}
		return results
	}

	// Results are per-candidate; no goroutine returns an error.
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = o.processor.Process(ctx, c, class)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // always nil
	return results
}
