package uploader

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"gramfuzz/internal/config"
	"gramfuzz/internal/util"
)

// GCSUploader uploads corpus directories to Google Cloud Storage.
type GCSUploader struct {
	cfg    config.GCSConfig
	client *storage.Client
}

// NewGCS constructs an uploader from GCS configuration.
func NewGCS(cfg config.GCSConfig) (*GCSUploader, error) {
	if !cfg.Enabled {
		return &GCSUploader{cfg: cfg}, nil
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "gcs client")
	}
	return &GCSUploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether GCS uploads are configured.
func (u *GCSUploader) Enabled() bool {
	return u.cfg.Enabled
}

// UploadDir uploads every file of a corpus directory and returns the gs://
// prefix holding them.
func (u *GCSUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", errors.New("gcs uploader is not initialized")
	}
	objs, root, err := objects(dir, u.cfg.Prefix)
	if err != nil {
		return "", err
	}
	bucket := u.client.Bucket(u.cfg.Bucket)
	for _, obj := range objs {
		if err := put(bucket.Object(obj.key).NewWriter(ctx), obj.path); err != nil {
			return "", errors.Wrapf(err, "upload %s", obj.key)
		}
	}
	return location("gs", u.cfg.Bucket, root), nil
}

func put(w *storage.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "gcs upload file")
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
