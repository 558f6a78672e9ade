package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/model"
)

// Fetcher retrieves candidate bytes, trying the fallback URL once.
type Fetcher interface {
	FetchWithFallback(ctx context.Context, c model.Candidate) (body []byte, usedURL string, err error)
}

// Index is the digest registry. Register must return index.ErrAlreadyExists
// when the digest is already present.
type Index interface {
	Contains(ctx context.Context, digest model.ContentDigest) (bool, error)
	Register(ctx context.Context, img model.StoredImage) error
}

// MetadataIndex is implemented by indexes that can keep EXIF tags.
type MetadataIndex interface {
	SaveMetadata(ctx context.Context, digest model.ContentDigest, tags map[string]string) error
}

// ImageStore writes and removes image files.
type ImageStore interface {
	Write(class model.Classification, id model.StoredIdentifier, data []byte) (string, error)
	Remove(class model.Classification, id model.StoredIdentifier) error
}

// Inspector extracts metadata from image bytes.
type Inspector interface {
	Inspect(data []byte) (map[string]string, error)
}

// Recorder observes candidate outcomes.
type Recorder interface {
	CandidateProcessed(class model.Classification, outcome model.Outcome)
}

// Result is the outcome of processing one candidate.
type Result struct {
	Outcome    model.Outcome
	Digest     model.ContentDigest
	Identifier model.StoredIdentifier
	// URL is the URL whose bytes were used, or the primary URL on fetch failure.
	URL string
	Err error
}

// Deduplicator processes candidates against one index and one image store.
type Deduplicator struct {
	fetcher   Fetcher
	index     Index
	store     ImageStore
	digest    model.DigestAlgorithm
	inspector Inspector
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithDigest sets the digest algorithm. It must match the index.
func WithDigest(algo model.DigestAlgorithm) Option {
	return func(d *Deduplicator) {
		if algo != "" {
			d.digest = algo
		}
	}
}

// WithInspector extracts metadata from newly stored images.
func WithInspector(i Inspector) Option {
	return func(d *Deduplicator) {
		d.inspector = i
	}
}

// WithMetrics records every outcome.
func WithMetrics(r Recorder) Option {
	return func(d *Deduplicator) {
		d.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Deduplicator.
func New(fetcher Fetcher, idx Index, store ImageStore, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		fetcher: fetcher,
		index:   idx,
		store:   store,
		digest:  model.DigestSHA256,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process fetches, digests and stores one candidate under class.
// It is safe for concurrent use when the Index and ImageStore are.
func (d *Deduplicator) Process(ctx context.Context, c model.Candidate, class model.Classification) Result {
	res := d.process(ctx, c, class)
	if d.metrics != nil {
		d.metrics.CandidateProcessed(class, res.Outcome)
	}
	return res
}

func (d *Deduplicator) process(ctx context.Context, c model.Candidate, class model.Classification) Result {
	body, usedURL, err := d.fetcher.FetchWithFallback(ctx, c)
	if err != nil {
		d.logger.Info("candidate skipped",
			"classification", class.String(),
			"url", c.PrimaryURL,
			"error", err,
		)
		return Result{Outcome: model.OutcomeFailed, URL: c.PrimaryURL, Err: err}
	}

	// Once the bytes are in hand the candidate runs to completion, so a
	// cancelled run never leaves a written file without its index entry.
	ctx = context.WithoutCancel(ctx)

	digest := d.digest.Sum(body)
	res := Result{Digest: digest, URL: usedURL}

	known, err := d.index.Contains(ctx, digest)
	if err != nil {
		return d.fail(res, class, fmt.Errorf("index lookup: %w", err))
	}
	if known {
		d.logger.Debug("duplicate image",
			"classification", class.String(),
			"url", usedURL,
			"digest", digest.Hex(),
		)
		res.Outcome = model.OutcomeDuplicate
		return res
	}

	id, err := model.NewStoredIdentifier()
	if err != nil {
		return d.fail(res, class, err)
	}
	res.Identifier = id

	// Write first so an index entry always has its file.
	if _, err := d.store.Write(class, id, body); err != nil {
		return d.fail(res, class, err)
	}

	err = d.index.Register(ctx, model.StoredImage{
		Digest:         digest,
		Identifier:     id,
		Classification: class,
		SourceURL:      usedURL,
		Size:           int64(len(body)),
		StoredAt:       d.now(),
	})
	if err != nil {
		d.removeOrphan(class, id)
		if errors.Is(err, index.ErrAlreadyExists) {
			d.logger.Debug("duplicate image registered concurrently",
				"classification", class.String(),
				"url", usedURL,
				"digest", digest.Hex(),
			)
			res.Outcome = model.OutcomeDuplicate
			res.Identifier = model.StoredIdentifier{}
			return res
		}
		return d.fail(res, class, fmt.Errorf("index register: %w", err))
	}

	d.logger.Debug("image stored",
		"classification", class.String(),
		"url", usedURL,
		"digest", digest.Hex(),
		"identifier", id.String(),
		"size", len(body),
	)
	res.Outcome = model.OutcomeStored
	d.inspect(ctx, digest, body)
	return res
}

func (d *Deduplicator) fail(res Result, class model.Classification, err error) Result {
	serr := &StorageError{URL: res.URL, Digest: res.Digest, Identifier: res.Identifier, Err: err}
	d.logger.Warn("failed to store image",
		"classification", class.String(),
		"url", res.URL,
		"digest", res.Digest.Hex(),
		"error", err,
	)
	res.Outcome = model.OutcomeFailed
	res.Err = serr
	return res
}

func (d *Deduplicator) removeOrphan(class model.Classification, id model.StoredIdentifier) {
	if err := d.store.Remove(class, id); err != nil {
		d.logger.Warn("failed to remove unregistered image",
			"classification", class.String(),
			"identifier", id.String(),
			"error", err,
		)
	}
}

// inspect records EXIF tags for a newly stored image. Failures are logged only.
func (d *Deduplicator) inspect(ctx context.Context, digest model.ContentDigest, body []byte) {
	if d.inspector == nil {
		return
	}
	saver, ok := d.index.(MetadataIndex)
	if !ok {
		return
	}

	tags, err := d.inspector.Inspect(body)
	if err != nil || len(tags) == 0 {
		return
	}
	if err := saver.SaveMetadata(ctx, digest, tags); err != nil {
		d.logger.Debug("failed to save image metadata",
			"digest", digest.Hex(),
			"error", err,
		)
	}
}
