package imagestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// v4MaxExpiry はV4署名付きURLの有効期限の上限。
const v4MaxExpiry = 7 * 24 * time.Hour

// GCSStore はCloud StorageのバケットをBlobStoreとして使う。
type GCSStore struct {
	client    *storage.Client
	bucket    string
	projectID string
	now       func() time.Time
}

// NewGCSClient はCloud Storageクライアントを生成する。
// credentialsFileが空の場合はApplication Default Credentialsを使用する。
func NewGCSClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// NewGCSStore はGCSStoreを生成する。
func NewGCSStore(client *storage.Client, bucket, projectID string) *GCSStore {
	return &GCSStore{
		client:    client,
		bucket:    bucket,
		projectID: projectID,
		now:       time.Now,
	}
}

// Put はオブジェクトを書き込む。
func (s *GCSStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"uploadedAt": s.now().UTC().Format(time.RFC3339),
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", path, err)
	}
	return nil
}

// SignedURL はGET用の署名付きURLを発行する。
// V4署名は7日を超える有効期限を受け付けないため、それより長い場合はV2で署名する。
func (s *GCSStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	scheme := storage.SigningSchemeV4
	if ttl > v4MaxExpiry {
		scheme = storage.SigningSchemeV2
	}

	u, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  scheme,
		Method:  http.MethodGet,
		Expires: s.now().UTC().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", path, err)
	}
	return u, nil
}

// EnsureBucket はバケットが無ければ非公開で作成する。
func (s *GCSStore) EnsureBucket(ctx context.Context) error {
	bucket := s.client.Bucket(s.bucket)

	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to read bucket attrs: %w", err)
	}

	attrs := &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
		PublicAccessPrevention:   storage.PublicAccessPreventionEnforced,
	}
	if err := bucket.Create(ctx, s.projectID, attrs); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Close はクライアントを閉じる。
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ BlobStore = (*GCSStore)(nil)
