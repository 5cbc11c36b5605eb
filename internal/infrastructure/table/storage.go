package table

import (
	"bytes"
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/mailmerge/pkg/helpers"
)

// Storage opens table files for reading and writing.
type Storage interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, data []byte) error
}

// LocalStorage reads and writes files on disk.
type LocalStorage struct{}

func (LocalStorage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Write replaces path through a temporary sibling so a failed write never
// truncates the previous table.
func (LocalStorage) Write(_ context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// GCSStorage reads and writes gs://bucket/object paths.
type GCSStorage struct {
	Client *storage.Client
}

func (s GCSStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, err := helpers.ParseGCSURI(path)
	if err != nil {
		return nil, err
	}
	return helpers.DownloadObject(ctx, s.Client, bucket, object)
}

func (s GCSStorage) Write(ctx context.Context, path string, data []byte) error {
	bucket, object, err := helpers.ParseGCSURI(path)
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(object))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return helpers.UploadObject(ctx, s.Client, bucket, object, contentType, bytes.NewReader(data))
}

// StorageFor picks GCS for gs:// paths and the local disk otherwise.
func StorageFor(path string, gcs *storage.Client) Storage {
	if helpers.IsGCSURI(path) && gcs != nil {
		return GCSStorage{Client: gcs}
	}
	return LocalStorage{}
}
