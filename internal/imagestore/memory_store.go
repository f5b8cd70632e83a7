package imagestore

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryObject はMemoryStoreに保存されたオブジェクト。
type MemoryObject struct {
	ContentType string
	Data        []byte
}

// MemoryStore はメモリ上のBlobStore。ローカル開発とテストで使う。
// SignedURLはbaseURL配下の擬似URLを返す。
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]MemoryObject
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]MemoryObject),
	}
}

// Put はオブジェクトを保存する。
func (s *MemoryStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = MemoryObject{ContentType: contentType, Data: buf}
	return nil
}

// SignedURL は有効期限をクエリに含む擬似URLを返す。
func (s *MemoryStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", path)
	}

	q := url.Values{"expires": {time.Now().Add(ttl).UTC().Format(time.RFC3339)}}
	return s.baseURL + "/" + path + "?" + q.Encode(), nil
}

// EnsureBucket は何もしない。
func (s *MemoryStore) EnsureBucket(context.Context) error {
	return nil
}

// Object は保存済みオブジェクトを返す。
func (s *MemoryStore) Object(path string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	return obj, ok
}

var _ BlobStore = (*MemoryStore)(nil)
