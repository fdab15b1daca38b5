package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"google.golang.org/api/option"
)

// GCSStore keeps results as objects in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore connects with the given service account key, or with
// application default credentials when credentialsFile is empty.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key+".json"))
}

func (s *GCSStore) Save(ctx context.Context, key string, r result.Result) error {
	if err := validKey(key); err != nil {
		return err
	}
	w := s.object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if err := json.NewEncoder(w).Encode(r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload result %s to gs://%s: %w", key, s.bucket, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Load(ctx context.Context, key string) (result.Result, error) {
	if err := validKey(key); err != nil {
		return result.Result{}, err
	}
	rd, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return result.Result{}, fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		return result.Result{}, fmt.Errorf("failed to open gs://%s result %s: %w", s.bucket, key, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return result.Result{}, fmt.Errorf("failed to download result %s: %w", key, err)
	}
	var r result.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return result.Result{}, fmt.Errorf("failed to decode result %s: %w", key, err)
	}
	return r, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
