package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/model"
)

// fakeFetcher serves bodies by URL. URLs without a body fail.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	f := &fakeFetcher{bodies: make(map[string][]byte), calls: make(map[string]int)}
	for u, b := range bodies {
		f.bodies[u] = []byte(b)
	}
	return f
}

func (f *fakeFetcher) fetch(u string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[u]++
	b, ok := f.bodies[u]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", u)
	}
	return b, nil
}

func (f *fakeFetcher) FetchWithFallback(_ context.Context, c model.Candidate) ([]byte, string, error) {
	body, err := f.fetch(c.PrimaryURL)
	if err == nil {
		return body, c.PrimaryURL, nil
	}
	if c.FallbackURL == "" {
		return nil, "", err
	}
	body, err2 := f.fetch(c.FallbackURL)
	if err2 == nil {
		return body, c.FallbackURL, nil
	}
	return nil, "", errors.Join(err, err2)
}

func (f *fakeFetcher) callCount(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

// memIndex is an in-memory Index.
type memIndex struct {
	mu       sync.Mutex
	entries  map[model.ContentDigest]model.StoredImage
	metadata map[model.ContentDigest]map[string]string

	// containsErr and registerErr force failures when set.
	containsErr error
	registerErr error
	// blindContains makes Contains always report absent.
	blindContains bool
}

func newMemIndex() *memIndex {
	return &memIndex{
		entries:  make(map[model.ContentDigest]model.StoredImage),
		metadata: make(map[model.ContentDigest]map[string]string),
	}
}

func (m *memIndex) Contains(_ context.Context, d model.ContentDigest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.containsErr != nil {
		return false, m.containsErr
	}
	if m.blindContains {
		return false, nil
	}
	_, ok := m.entries[d]
	return ok, nil
}

func (m *memIndex) Register(_ context.Context, img model.StoredImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	if _, ok := m.entries[img.Digest]; ok {
		return index.ErrAlreadyExists
	}
	m.entries[img.Digest] = img
	return nil
}

func (m *memIndex) SaveMetadata(_ context.Context, d model.ContentDigest, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[d] = tags
	return nil
}

func (m *memIndex) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memIndex) lookup(d model.ContentDigest) (model.StoredImage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.entries[d]
	return img, ok
}

type fileKey struct {
	class model.Classification
	id    model.StoredIdentifier
}

// memStore is an in-memory ImageStore.
type memStore struct {
	mu       sync.Mutex
	files    map[fileKey][]byte
	writeErr error
	removed  int
}

func newMemStore() *memStore {
	return &memStore{files: make(map[fileKey][]byte)}
}

func (s *memStore) Write(class model.Classification, id model.StoredIdentifier, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}
	k := fileKey{class, id}
	if _, ok := s.files[k]; ok {
		return "", errors.New("exists")
	}
	s.files[k] = append([]byte(nil), data...)
	return class.String() + "/" + id.String(), nil
}

func (s *memStore) Remove(class model.Classification, id model.StoredIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fileKey{class, id})
	s.removed++
	return nil
}

func (s *memStore) get(class model.Classification, id model.StoredIdentifier) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[fileKey{class, id}]
	return b, ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// fakeInspector returns fixed tags.
type fakeInspector struct {
	tags map[string]string
	err  error
}

func (f fakeInspector) Inspect([]byte) (map[string]string, error) {
	return f.tags, f.err
}

// countingRecorder counts outcomes.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[model.Outcome]int
}

func (r *countingRecorder) CandidateProcessed(_ model.Classification, o model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[model.Outcome]int)
	}
	r.counts[o]++
}
