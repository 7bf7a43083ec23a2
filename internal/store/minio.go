package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const refScheme = "minio://"

// MinioConfig configures a MinioStore.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioStore keeps vendor files as objects <vendor_id>/<filename>.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the bucket name.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// ObjectRef formats a bucket and key as a store reference.
func ObjectRef(bucket, key string) string {
	return refScheme + bucket + "/" + key
}

// ParseObjectRef splits a minio:// reference into bucket and key.
func ParseObjectRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", "", fmt.Errorf("not a minio reference: %q", ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed minio reference: %q", ref)
	}
	return bucket, key, nil
}

func (s *MinioStore) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioErr(err, key)
	}
	return data, nil
}

func translateMinioErr(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("reading %s: %w", key, err)
}

// StoreFile uploads data and returns its minio:// reference.
func (s *MinioStore) StoreFile(ctx context.Context, vendorID, filename string, data []byte) (string, error) {
	if err := ValidateVendorID(vendorID); err != nil {
		return "", err
	}
	key := path.Join(vendorID, cleanFilename(filename))
	if err := s.put(ctx, key, data, "application/octet-stream"); err != nil {
		return "", err
	}
	return ObjectRef(s.bucket, key), nil
}

// ReadFile downloads a minio:// reference.
func (s *MinioStore) ReadFile(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := ParseObjectRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return s.get(ctx, bucket, key)
}

// LoadManifest reads <vendor_id>/manifest.json, empty when absent.
func (s *MinioStore) LoadManifest(ctx context.Context, vendorID string) (Manifest, error) {
	if err := ValidateVendorID(vendorID); err != nil {
		return nil, err
	}
	data, err := s.get(ctx, s.bucket, path.Join(vendorID, manifestName))
	if err != nil {
		if isNotFound(err) {
			return Manifest{}, nil
		}
		return nil, err
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest for %s: %w", vendorID, err)
	}
	return m, nil
}

// SaveManifest writes <vendor_id>/manifest.json.
func (s *MinioStore) SaveManifest(ctx context.Context, vendorID string, m Manifest) error {
	if err := ValidateVendorID(vendorID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return s.put(ctx, path.Join(vendorID, manifestName), data, "application/json")
}
