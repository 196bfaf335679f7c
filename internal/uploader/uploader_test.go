package uploader

import (
	"os"
	"path/filepath"
	"testing"

	"gramfuzz/internal/config"
)

func TestNewDisabledIsNoop(t *testing.T) {
	up, err := New(config.StorageConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := up.(NoopUploader); !ok || up.Enabled() {
		t.Fatalf("expected noop uploader, got %T", up)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(config.StorageConfig{S3: config.S3Config{Enabled: true}}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestObjectsKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "corpus_0001_x")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "corpus.sql"), []byte("SELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	objs, root, err := objects(dir, "/runs/")
	if err != nil {
		t.Fatalf("objects: %v", err)
	}
	if root != "runs/corpus_0001_x/" {
		t.Fatalf("unexpected root %q", root)
	}
	if len(objs) != 1 || objs[0].key != "runs/corpus_0001_x/corpus.sql" {
		t.Fatalf("unexpected objects %+v", objs)
	}
	if got := location("gs", "bucket", root); got != "gs://bucket/runs/corpus_0001_x/" {
		t.Fatalf("unexpected location %q", got)
	}
}
