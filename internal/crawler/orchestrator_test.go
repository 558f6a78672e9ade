package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/imagecrawl/internal/dedup"
	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/model"
	"github.com/nao1215/imagecrawl/internal/search"
	"github.com/nao1215/imagecrawl/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePaginator serves pages keyed by term and start index.
type fakePaginator struct {
	mu    sync.Mutex
	pages map[string]map[int]*search.Page
	errs  map[string]map[int]error
	calls []string

	// onQuery runs before each query.
	onQuery func(term string, start int)
}

func newFakePaginator() *fakePaginator {
	return &fakePaginator{
		pages: make(map[string]map[int]*search.Page),
		errs:  make(map[string]map[int]error),
	}
}

func (f *fakePaginator) addPage(term string, start int, next int, candidates ...model.Candidate) {
	if f.pages[term] == nil {
		f.pages[term] = make(map[int]*search.Page)
	}
	f.pages[term][start] = &search.Page{
		Start:      start,
		Candidates: candidates,
		NextStart:  next,
		HasNext:    next > 0,
		Raw:        []byte(fmt.Sprintf(`{"term":%q,"start":%d}`, term, start)),
	}
}

func (f *fakePaginator) failAt(term string, start int, err error) {
	if f.errs[term] == nil {
		f.errs[term] = make(map[int]error)
	}
	f.errs[term][start] = err
}

func (f *fakePaginator) Query(_ context.Context, term string, _ model.Classification, start int) (*search.Page, error) {
	if f.onQuery != nil {
		f.onQuery(term, start)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s@%d", term, start))
	if err := f.errs[term][start]; err != nil {
		return nil, err
	}
	page, ok := f.pages[term][start]
	if !ok {
		return nil, &search.PaginationError{Term: term, Start: start, StatusCode: 400}
	}
	return page, nil
}

// fakeFetcher serves bodies keyed by URL.
type fakeFetcher map[string]string

func (f fakeFetcher) FetchWithFallback(_ context.Context, c model.Candidate) ([]byte, string, error) {
	if b, ok := f[c.PrimaryURL]; ok {
		return []byte(b), c.PrimaryURL, nil
	}
	if b, ok := f[c.FallbackURL]; ok && c.FallbackURL != "" {
		return []byte(b), c.FallbackURL, nil
	}
	return nil, "", errors.New("not found")
}

type failingQueryLog struct{ calls atomic.Int32 }

func (q *failingQueryLog) Write([]byte) (string, error) {
	q.calls.Add(1)
	return "", errors.New("read-only filesystem")
}

type recorder struct {
	mu     sync.Mutex
	pages  int
	states map[model.TermState]int
}

func (r *recorder) PageFetched(model.Classification, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
}

func (r *recorder) TermFinished(s model.TermState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states == nil {
		r.states = make(map[model.TermState]int)
	}
	r.states[s]++
}

func candidate(name string) model.Candidate {
	return model.Candidate{
		PrimaryURL:  "http://img.example/" + name + ".jpg",
		FallbackURL: "http://thumb.example/" + name + ".jpg",
	}
}

// env wires a real index, image store and query log in a temp dir.
type env struct {
	root     string
	idx      *index.Index
	images   *storage.ImageStore
	queryLog *storage.QueryLog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	idx, err := index.Open(filepath.Join(root, "index"), index.DefaultOptions())
	if err != nil {
		t.Fatalf("index.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return &env{
		root:     root,
		idx:      idx,
		images:   storage.NewImageStore(filepath.Join(root, "images")),
		queryLog: storage.NewQueryLog(filepath.Join(root, "queries")),
	}
}

func (e *env) orchestrator(p Paginator, f dedup.Fetcher, opts ...Option) *Orchestrator {
	d := dedup.New(f, e.idx, e.images, dedup.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewOrchestrator(p, d, e.queryLog, opts...)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	return len(entries)
}

// TestRunSingleTermScenario follows one term over two pages where the
// second page repeats the bytes of a first-page image under another URL.
func TestRunSingleTermScenario(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("iphone", 1, 11, candidate("a"), candidate("b"))
	p.addPage("iphone", 11, 0, candidate("c"), candidate("a-mirror"))
	f := fakeFetcher{
		"http://img.example/a.jpg":        "AAAA",
		"http://img.example/b.jpg":        "BBBB",
		"http://thumb.example/c.jpg":      "CCCC",
		"http://img.example/a-mirror.jpg": "AAAA",
	}

	summary := e.orchestrator(p, f).Run(context.Background(), []model.SearchTerm{{Term: "iphone", Classification: "ios"}})

	if len(summary.Terms) != 1 {
		t.Fatalf("terms = %d", len(summary.Terms))
	}
	r := summary.Terms[0]
	if r.State != model.TermDone {
		t.Errorf("State = %s, err = %v", r.State, r.Err)
	}
	if r.Pages != 2 || r.Stored != 3 || r.Duplicate != 1 || r.Failed != 0 {
		t.Errorf("result = %+v", r)
	}
	if got := countFiles(t, filepath.Join(e.root, "queries")); got != 2 {
		t.Errorf("query log files = %d, want 2", got)
	}
	if got := countFiles(t, filepath.Join(e.root, "images", "ios")); got != 3 {
		t.Errorf("ios images = %d, want 3", got)
	}
	n, err := e.idx.Count(context.Background())
	if err != nil || n != 3 {
		t.Errorf("index entries = %d, %v, want 3", n, err)
	}
	if fmt.Sprint(p.calls) != "[iphone@1 iphone@11]" {
		t.Errorf("calls = %v", p.calls)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("pixel", 1, 0, candidate("p1"), candidate("p2"))
	f := fakeFetcher{
		"http://img.example/p1.jpg": "P1",
		"http://img.example/p2.jpg": "P2",
	}
	plan := []model.SearchTerm{{Term: "pixel", Classification: "android"}}

	first := e.orchestrator(p, f).Run(context.Background(), plan)
	second := e.orchestrator(p, f).Run(context.Background(), plan)

	if first.Totals().Stored != 2 {
		t.Errorf("first run stored = %d", first.Totals().Stored)
	}
	if s := second.Totals(); s.Stored != 0 || s.Duplicate != 2 {
		t.Errorf("second run = %+v, want only duplicates", s)
	}
	if got := countFiles(t, filepath.Join(e.root, "images", "android")); got != 2 {
		t.Errorf("images = %d, want 2", got)
	}
	if got := countFiles(t, filepath.Join(e.root, "queries")); got != 2 {
		t.Errorf("query log files = %d, want one per page per run", got)
	}
}

func TestRunTermIsolation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("good", 1, 0, candidate("g"))
	p.failAt("bad", 1, &search.PaginationError{Term: "bad", Start: 1, StatusCode: 403})
	p.addPage("later", 1, 11, candidate("l1"))
	p.failAt("later", 11, &search.PaginationError{Term: "later", Start: 11, StatusCode: 500})
	p.addPage("after", 1, 0, candidate("x"))
	f := fakeFetcher{
		"http://img.example/g.jpg":  "G",
		"http://img.example/l1.jpg": "L1",
		"http://img.example/x.jpg":  "X",
	}
	rec := &recorder{}

	summary := e.orchestrator(p, f, WithMetrics(rec)).Run(context.Background(), []model.SearchTerm{
		{Term: "good", Classification: "a"},
		{Term: "bad", Classification: "a"},
		{Term: "later", Classification: "b"},
		{Term: "after", Classification: "b"},
	})

	want := []struct {
		state  model.TermState
		pages  int
		stored int
	}{
		{model.TermDone, 1, 1},
		{model.TermAborted, 0, 0},
		{model.TermAborted, 1, 1},
		{model.TermDone, 1, 1},
	}
	for i, w := range want {
		r := summary.Terms[i]
		if r.State != w.state || r.Pages != w.pages || r.Stored != w.stored {
			t.Errorf("term %s = %s pages=%d stored=%d, want %s pages=%d stored=%d",
				r.Term, r.State, r.Pages, r.Stored, w.state, w.pages, w.stored)
		}
	}
	if !errors.Is(summary.Terms[1].Err, search.ErrPagination) {
		t.Errorf("aborted term error = %v", summary.Terms[1].Err)
	}
	if summary.Terms[1].ErrorMessage == "" {
		t.Error("ErrorMessage should be set")
	}
	if len(summary.Aborted()) != 2 {
		t.Errorf("aborted = %d", len(summary.Aborted()))
	}
	if rec.pages != 3 || rec.states[model.TermDone] != 2 || rec.states[model.TermAborted] != 2 {
		t.Errorf("recorder = pages %d states %v", rec.pages, rec.states)
	}
}

func TestRunCandidateFailuresDoNotStopTerm(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("t", 1, 11, candidate("missing"), candidate("ok"))
	p.addPage("t", 11, 0, candidate("ok2"))
	f := fakeFetcher{
		"http://img.example/ok.jpg":  "OK",
		"http://img.example/ok2.jpg": "OK2",
	}

	r := e.orchestrator(p, f).RunTerm(context.Background(), model.SearchTerm{Term: "t", Classification: "c"})
	if r.State != model.TermDone || r.Pages != 2 || r.Stored != 2 || r.Failed != 1 {
		t.Errorf("result = %+v", r)
	}
}

func TestRunQueryLogFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("t", 1, 0, candidate("a"))
	ql := &failingQueryLog{}
	d := dedup.New(fakeFetcher{"http://img.example/a.jpg": "A"}, e.idx, e.images, dedup.WithLogger(quietLogger()))

	r := NewOrchestrator(p, d, ql, WithLogger(quietLogger())).RunTerm(context.Background(), model.SearchTerm{Term: "t", Classification: "c"})
	if r.State != model.TermDone || r.Stored != 1 {
		t.Errorf("result = %+v", r)
	}
	if ql.calls.Load() != 1 {
		t.Errorf("query log writes = %d", ql.calls.Load())
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := newFakePaginator()
	p.addPage("t", 1, 0, candidate("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := e.orchestrator(p, fakeFetcher{}).Run(ctx, []model.SearchTerm{
		{Term: "t", Classification: "c"},
		{Term: "u", Classification: "c"},
	})
	for _, r := range summary.Terms {
		if r.State != model.TermAborted || !errors.Is(r.Err, context.Canceled) {
			t.Errorf("term %s = %s, %v", r.Term, r.State, r.Err)
		}
	}
	if len(p.calls) != 0 {
		t.Errorf("queries issued after cancellation: %v", p.calls)
	}
}

// slowProcessor records the peak number of concurrent Process calls.
type slowProcessor struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	done     atomic.Int32
}

func (s *slowProcessor) Process(_ context.Context, _ model.Candidate, _ model.Classification) dedup.Result {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	s.inFlight.Add(-1)
	s.done.Add(1)
	return dedup.Result{Outcome: model.OutcomeStored}
}

func TestRunConcurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		concurrency int
		wantPeak    int32
	}{
		{name: "sequential by default", concurrency: 0, wantPeak: 1},
		{name: "bounded fan-out", concurrency: 3, wantPeak: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			proc := &slowProcessor{}
			p := newFakePaginator()
			page1 := make([]model.Candidate, 6)
			for i := range page1 {
				page1[i] = candidate(fmt.Sprintf("c%d", i))
			}
			p.addPage("t", 1, 11, page1...)
			p.addPage("t", 11, 0, candidate("last"))

			var processedBeforePage2 int32
			p.onQuery = func(_ string, start int) {
				if start == 11 {
					processedBeforePage2 = proc.done.Load()
				}
			}

			o := NewOrchestrator(p, proc, storage.NewQueryLog(t.TempDir()),
				WithConcurrency(tt.concurrency),
				WithLogger(quietLogger()),
			)
			r := o.RunTerm(context.Background(), model.SearchTerm{Term: "t", Classification: "c"})

			if r.Stored != 7 || r.State != model.TermDone {
				t.Errorf("result = %+v", r)
			}
			if got := proc.peak.Load(); got != tt.wantPeak {
				t.Errorf("peak concurrency = %d, want %d", got, tt.wantPeak)
			}
			if processedBeforePage2 != 6 {
				t.Errorf("page 2 queried after %d of 6 candidates", processedBeforePage2)
			}
		})
	}
}
