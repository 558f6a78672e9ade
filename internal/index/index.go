package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/imagecrawl/internal/model"
)

// FileName is the index database file name inside the index directory.
const FileName = "registrar.db"

// metaDigestKey is the index_meta key recording the digest algorithm.
const metaDigestKey = "digest_algorithm"

// Index is the SQLite-backed digest -> identifier store.
type Index struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// digest is the algorithm every key in this index was computed with.
	digest model.DigestAlgorithm

	// mu serializes writes.
	mu sync.Mutex
}

// Options configures Index behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// Digest is the algorithm the caller computes digests with. A new index
	// records it; an existing index must match it. Empty accepts whatever the
	// existing index uses (sha256 for a new one).
	Digest model.DigestAlgorithm
}

// DefaultOptions returns the default index options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		Digest:            model.DigestSHA256,
	}
}

// Open opens or creates the index in dir.
func Open(dir string, opts Options) (*Index, error) {
	dbPath := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrIndexNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check index path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(5000)", dbPath, mode)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idx := &Index{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idx.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := idx.bindDigest(opts.Digest); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Path returns the database file path.
func (idx *Index) Path() string {
	return idx.dbPath
}

// Digest returns the digest algorithm this index is bound to.
func (idx *Index) Digest() model.DigestAlgorithm {
	return idx.digest
}

// createTables creates the schema if it doesn't exist.
func (idx *Index) createTables() error {
	schema := `
	-- One row per distinct content digest. Never updated or deleted.
	CREATE TABLE IF NOT EXISTS hashes (
		digest BLOB PRIMARY KEY,
		identifier BLOB NOT NULL UNIQUE,
		classification TEXT NOT NULL,
		source_url TEXT,
		size INTEGER DEFAULT 0,
		stored_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hashes_classification ON hashes(classification);

	-- Index-wide settings such as the digest algorithm.
	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Image metadata (EXIF tags) for registered digests.
	CREATE TABLE IF NOT EXISTS image_metadata (
		digest BLOB NOT NULL,
		tag TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (digest, tag)
	);
	`

	_, err := idx.db.ExecContext(context.Background(), schema)
	return err
}

// bindDigest records the digest algorithm on first open and checks it afterwards.
func (idx *Index) bindDigest(want model.DigestAlgorithm) error {
	ctx := context.Background()

	initial := want
	if initial == "" {
		initial = model.DigestSHA256
	}
	if _, err := idx.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_meta (key, value) VALUES (?, ?)`,
		metaDigestKey, string(initial),
	); err != nil {
		return fmt.Errorf("failed to record digest algorithm: %w", err)
	}

	var stored string
	if err := idx.db.QueryRowContext(ctx,
		`SELECT value FROM index_meta WHERE key = ?`, metaDigestKey,
	).Scan(&stored); err != nil {
		return fmt.Errorf("failed to read digest algorithm: %w", err)
	}

	if want != "" && stored != string(want) {
		return fmt.Errorf("%w: index uses %s, requested %s", ErrDigestMismatch, stored, want)
	}
	idx.digest = model.DigestAlgorithm(stored)
	return nil
}

// Contains reports whether the digest is registered.
func (idx *Index) Contains(ctx context.Context, digest model.ContentDigest) (bool, error) {
	var one int
	err := idx.db.QueryRowContext(ctx,
		`SELECT 1 FROM hashes WHERE digest = ?`, digest.Bytes(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check digest: %w", err)
	}
	return true, nil
}

// Register records a new image. It is an atomic insert-if-absent: when the
// digest is already present it returns ErrAlreadyExists and changes nothing.
func (idx *Index) Register(ctx context.Context, img model.StoredImage) error {
	if img.Identifier.IsZero() {
		return errors.New("cannot register an empty identifier")
	}
	storedAt := img.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	result, err := idx.db.ExecContext(ctx, `
	INSERT INTO hashes (digest, identifier, classification, source_url, size, stored_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(digest) DO NOTHING
	`,
		img.Digest.Bytes(),
		img.Identifier.Bytes(),
		img.Classification.String(),
		img.SourceURL,
		img.Size,
		storedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to register digest %s: %w", img.Digest, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm registration of %s: %w", img.Digest, err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Lookup returns the stored image registered for digest.
func (idx *Index) Lookup(ctx context.Context, digest model.ContentDigest) (model.StoredImage, error) {
	row := idx.db.QueryRowContext(ctx, `
	SELECT digest, identifier, classification, source_url, size, stored_at
	FROM hashes WHERE digest = ?
	`, digest.Bytes())

	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredImage{}, ErrNotFound
	}
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("failed to look up digest %s: %w", digest, err)
	}
	return img, nil
}

// ContainsIdentifier reports whether any digest maps to id.
func (idx *Index) ContainsIdentifier(ctx context.Context, id model.StoredIdentifier) (bool, error) {
	var one int
	err := idx.db.QueryRowContext(ctx,
		`SELECT 1 FROM hashes WHERE identifier = ?`, id.Bytes(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check identifier: %w", err)
	}
	return true, nil
}

// Count returns the number of registered digests.
func (idx *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hashes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count digests: %w", err)
	}
	return n, nil
}

// CountByClassification returns the number of registered digests per classification.
func (idx *Index) CountByClassification(ctx context.Context) (map[model.Classification]int64, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT classification, COUNT(*) FROM hashes GROUP BY classification ORDER BY classification`)
	if err != nil {
		return nil, fmt.Errorf("failed to count classifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Classification]int64)
	for rows.Next() {
		var c string
		var n int64
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("failed to scan classification count: %w", err)
		}
		counts[model.Classification(c)] = n
	}
	return counts, rows.Err()
}

// All returns every registered image ordered by registration time.
// The rows are fully read before returning so the single connection is free.
func (idx *Index) All(ctx context.Context) ([]model.StoredImage, error) {
	rows, err := idx.db.QueryContext(ctx, `
	SELECT digest, identifier, classification, source_url, size, stored_at
	FROM hashes ORDER BY stored_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	images := make([]model.StoredImage, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest row: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// SaveMetadata records tags for a registered digest. Tags already recorded
// for the digest are kept.
func (idx *Index) SaveMetadata(ctx context.Context, digest model.ContentDigest, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after Commit

	for tag, value := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO image_metadata (digest, tag, value) VALUES (?, ?, ?)`,
			digest.Bytes(), tag, value,
		); err != nil {
			return fmt.Errorf("failed to save metadata %s for %s: %w", tag, digest, err)
		}
	}

	return tx.Commit()
}

// Metadata returns the tags recorded for digest.
func (idx *Index) Metadata(ctx context.Context, digest model.ContentDigest) (map[string]string, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT tag, value FROM image_metadata WHERE digest = ?`, digest.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]string)
	for rows.Next() {
		var tag, value string
		if err := rows.Scan(&tag, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		tags[tag] = value
	}
	return tags, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (model.StoredImage, error) {
	var (
		digestBytes []byte
		idBytes     []byte
		class       string
		sourceURL   sql.NullString
		size        int64
		storedAt    string
	)
	if err := row.Scan(&digestBytes, &idBytes, &class, &sourceURL, &size, &storedAt); err != nil {
		return model.StoredImage{}, err
	}

	digest, err := model.DigestFromBytes(digestBytes)
	if err != nil {
		return model.StoredImage{}, err
	}
	id, err := model.IdentifierFromBytes(idBytes)
	if err != nil {
		return model.StoredImage{}, err
	}

	return model.StoredImage{
		Digest:         digest,
		Identifier:     id,
		Classification: model.Classification(class),
		SourceURL:      sourceURL.String,
		Size:           size,
		StoredAt:       parseTimestamp(storedAt),
	}, nil
}

// timestampFormats contains the timestamp formats accepted for stored_at.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
