// Package uploader copies finished corpus directories to object storage.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gramfuzz/internal/config"
)

// Uploader uploads a corpus directory and returns its remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no backend is configured.
type NoopUploader struct{}

func (NoopUploader) Enabled() bool { return false }

func (NoopUploader) UploadDir(context.Context, string) (string, error) { return "", nil }

// New returns the enabled backend, preferring GCS over S3.
func New(storage config.StorageConfig) (Uploader, error) {
	if storage.GCS.Enabled {
		up, err := NewGCS(storage.GCS)
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	if storage.S3.Enabled {
		up, err := NewS3(storage.S3)
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	return NoopUploader{}, nil
}

type object struct {
	path string
	key  string
}

// objects lists the regular files of dir with their keys under prefix.
func objects(dir, prefix string) ([]object, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", err
	}
	base := filepath.Base(dir)
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	root := prefix + base + "/"
	out := make([]object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		out = append(out, object{path: filepath.Join(dir, entry.Name()), key: root + entry.Name()})
	}
	return out, root, nil
}

func location(scheme, bucket, root string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, root)
}
