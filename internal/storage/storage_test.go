package storage

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/imagecrawl/internal/model"
)

func mustID(t *testing.T) model.StoredIdentifier {
	t.Helper()
	id, err := model.NewStoredIdentifier()
	if err != nil {
		t.Fatalf("NewStoredIdentifier() error = %v", err)
	}
	return id
}

func TestImageStoreWrite(t *testing.T) {
	t.Parallel()

	t.Run("writes exact bytes to class bucket", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		store := NewImageStore(root)
		id := mustID(t)
		data := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}

		path, err := store.Write("ios", id, data)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		want := filepath.Join(root, "ios", id.String())
		if path != want {
			t.Errorf("path = %q, want %q", path, want)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != string(data) {
			t.Errorf("content = %v, want %v", got, data)
		}

		entries, err := os.ReadDir(filepath.Join(root, "ios"))
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("bucket has %d entries, want 1 (temp file left behind?)", len(entries))
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		store := NewImageStore(t.TempDir())
		id := mustID(t)
		if _, err := store.Write("a", id, []byte("first")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		_, err := store.Write("a", id, []byte("second"))
		if !errors.Is(err, ErrFileExists) {
			t.Fatalf("expected ErrFileExists, got %v", err)
		}
		got, err := os.ReadFile(store.Path("a", id))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != "first" {
			t.Errorf("content = %q, want first", got)
		}
	})

	t.Run("rejects invalid classification", func(t *testing.T) {
		t.Parallel()

		store := NewImageStore(t.TempDir())
		for _, class := range []model.Classification{"", "..", "a/b"} {
			if _, err := store.Write(class, mustID(t), []byte("x")); err == nil {
				t.Errorf("Write(%q) expected error", class)
			}
		}
	})

	t.Run("rejects empty identifier", func(t *testing.T) {
		t.Parallel()

		store := NewImageStore(t.TempDir())
		_, err := store.Write("a", model.StoredIdentifier{}, []byte("x"))
		if !errors.Is(err, ErrEmptyIdentifier) {
			t.Errorf("expected ErrEmptyIdentifier, got %v", err)
		}
	})

	t.Run("unwritable root fails", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(root, []byte("not a dir"), 0600); err != nil {
			t.Fatal(err)
		}
		store := NewImageStore(root)
		if _, err := store.Write("a", mustID(t), []byte("x")); err == nil {
			t.Error("expected error when root is a file")
		}
	})
}

func TestImageStoreRemoveExists(t *testing.T) {
	t.Parallel()

	store := NewImageStore(t.TempDir())
	id := mustID(t)

	ok, err := store.Exists("a", id)
	if err != nil || ok {
		t.Fatalf("Exists() before write = %v, %v", ok, err)
	}
	if _, err := store.Write("a", id, []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	ok, err = store.Exists("a", id)
	if err != nil || !ok {
		t.Fatalf("Exists() after write = %v, %v", ok, err)
	}
	if err := store.Remove("a", id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove("a", id); err != nil {
		t.Errorf("Remove() of missing file error = %v", err)
	}
	ok, err = store.Exists("a", id)
	if err != nil || ok {
		t.Errorf("Exists() after remove = %v, %v", ok, err)
	}
}

func TestImageStoreWalk(t *testing.T) {
	t.Parallel()

	t.Run("lists images and skips foreign files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		store := NewImageStore(root)
		ids := map[string]model.Classification{}
		for _, class := range []model.Classification{"ios", "ios", "android"} {
			id := mustID(t)
			if _, err := store.Write(class, id, []byte("data")); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			ids[id.String()] = class
		}
		if err := os.WriteFile(filepath.Join(root, "ios", tempPrefix+"partial"), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}

		seen := map[string]model.Classification{}
		err := store.Walk(func(e Entry) error {
			seen[e.Identifier.String()] = e.Classification
			if e.Size != 4 {
				t.Errorf("Size = %d, want 4", e.Size)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if len(seen) != len(ids) {
			t.Fatalf("Walk saw %d images, want %d", len(seen), len(ids))
		}
		for id, class := range ids {
			if seen[id] != class {
				t.Errorf("image %s class = %q, want %q", id, seen[id], class)
			}
		}
	})

	t.Run("missing root is empty", func(t *testing.T) {
		t.Parallel()

		store := NewImageStore(filepath.Join(t.TempDir(), "none"))
		called := false
		if err := store.Walk(func(Entry) error { called = true; return nil }); err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if called {
			t.Error("callback called for empty store")
		}
	})

	t.Run("callback error stops walk", func(t *testing.T) {
		t.Parallel()

		store := NewImageStore(t.TempDir())
		for range 3 {
			if _, err := store.Write("a", mustID(t), []byte("x")); err != nil {
				t.Fatal(err)
			}
		}
		stop := errors.New("stop")
		calls := 0
		err := store.Walk(func(Entry) error { calls++; return stop })
		if !errors.Is(err, stop) {
			t.Errorf("expected stop error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

var stampPattern = regexp.MustCompile(`^\d+\.\d{9}$`)

func TestQueryLogWrite(t *testing.T) {
	t.Parallel()

	t.Run("persists raw bytes verbatim", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "queries")
		log := NewQueryLog(dir)
		raw := []byte(`{"items":[{"link":"http://x"}]}` + "\n")

		path, err := log.Write(raw)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if filepath.Dir(path) != dir {
			t.Errorf("path %q not in %q", path, dir)
		}
		if !stampPattern.MatchString(filepath.Base(path)) {
			t.Errorf("file name %q is not a timestamp", filepath.Base(path))
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != string(raw) {
			t.Errorf("content = %q, want %q", got, raw)
		}
	})

	t.Run("frozen clock still yields distinct increasing names", func(t *testing.T) {
		t.Parallel()

		log := NewQueryLog(t.TempDir())
		frozen := time.Unix(1700000000, 123456789)
		log.now = func() time.Time { return frozen }

		var names []string
		for range 5 {
			path, err := log.Write([]byte("{}"))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			names = append(names, filepath.Base(path))
		}
		if names[0] != "1700000000.123456789" {
			t.Errorf("first name = %q", names[0])
		}
		if names[1] != "1700000000.123456790" {
			t.Errorf("second name = %q", names[1])
		}
		if !sort.StringsAreSorted(names) {
			t.Errorf("names not increasing: %v", names)
		}
	})

	t.Run("concurrent writes never collide", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		log := NewQueryLog(dir)

		const writers = 20
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := log.Write([]byte("{}")); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Write() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != writers {
			t.Errorf("got %d files, want %d", len(entries), writers)
		}
	})

	t.Run("existing file is skipped, not overwritten", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		log := NewQueryLog(dir)
		log.now = func() time.Time { return time.Unix(5, 0) }
		if err := os.WriteFile(filepath.Join(dir, "5.000000000"), []byte("old"), 0600); err != nil {
			t.Fatal(err)
		}

		path, err := log.Write([]byte("new"))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.HasSuffix(path, "5.000000001") {
			t.Errorf("path = %q", path)
		}
		old, _ := os.ReadFile(filepath.Join(dir, "5.000000000"))
		if string(old) != "old" {
			t.Errorf("existing file overwritten: %q", old)
		}
	})
}

func TestFormatStamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		nanos int64
		want  string
	}{
		{nanos: 0, want: "0.000000000"},
		{nanos: 1, want: "0.000000001"},
		{nanos: 1700000000123456789, want: "1700000000.123456789"},
	}
	for _, tt := range tests {
		if got := formatStamp(tt.nanos); got != tt.want {
			t.Errorf("formatStamp(%d) = %q, want %q", tt.nanos, got, tt.want)
		}
	}
}
