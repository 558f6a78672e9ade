package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QueryLog persists raw search responses, one file per page.
type QueryLog struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewQueryLog returns a log writing into dir. The directory is created
// lazily on first write.
func NewQueryLog(dir string) *QueryLog {
	return &QueryLog{dir: dir, now: time.Now}
}

// Dir returns the log directory.
func (q *QueryLog) Dir() string {
	return q.dir
}

// Write stores raw verbatim and returns the file path. File names are
// "<seconds>.<nanoseconds>" and strictly increase within the process.
func (q *QueryLog) Write(raw []byte) (string, error) {
	if err := os.MkdirAll(q.dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create query log directory: %w", err)
	}

	for {
		name := formatStamp(q.nextStamp())
		path := filepath.Join(q.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if errors.Is(err, fs.ErrExist) {
			// Left over from another process; take the next stamp.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create query log file: %w", err)
		}

		if _, err := f.Write(raw); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write query log file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close query log file: %w", err)
		}
		return path, nil
	}
}

// nextStamp returns the current Unix time in nanoseconds, bumped past the
// previous stamp when the clock has not advanced.
func (q *QueryLog) nextStamp() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.now().UnixNano()
	if n <= q.last {
		n = q.last + 1
	}
	q.last = n
	return n
}

// formatStamp renders nanoseconds as "1700000000.123456789".
func formatStamp(nanos int64) string {
	return fmt.Sprintf("%d.%09d", nanos/int64(time.Second), nanos%int64(time.Second))
}
