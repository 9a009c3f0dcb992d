package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/spigell/legallens/internal/tender"
	"github.com/spigell/legallens/internal/utils"
)

const (
	keyPrefix   = "results"
	contentType = "application/json"
)

type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	UseSSL    bool   `mapstructure:"use-ssl"`
}

func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != "" && c.Bucket != ""
}

// backend is the object storage surface used by the archive.
type backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store keeps composed results as JSON objects.
type Store struct {
	backend backend
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("archive endpoint and bucket are required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Store{backend: &minioBackend{client: cli, bucket: cfg.Bucket}}, nil
}

// Key returns the object key of a run: results/<entity-slug>/<run-id>.json.
func Key(entity, runID string) string {
	return path.Join(keyPrefix, utils.Slug(entity), runID+".json")
}

func (s *Store) Store(ctx context.Context, runID string, result tender.Result) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", errors.New("run id is required")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	key := Key(result.EntityName, runID)
	if err := s.backend.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Load reads back a result stored under key.
func (s *Store) Load(ctx context.Context, key string) (tender.Result, error) {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return tender.Result{}, fmt.Errorf("get %s: %w", key, err)
	}

	var result tender.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return tender.Result{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return result, nil
}

type minioBackend struct {
	client *minio.Client
	bucket string
}

func (b *minioBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (b *minioBackend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
