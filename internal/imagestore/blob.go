// Package imagestore は商品画像のアップロードと保存先（Blob Store）を提供する。
package imagestore

import (
	"context"
	"time"
)

// BlobStore は画像の保存先を抽象化する。
type BlobStore interface {
	// Put はpathにdataを書き込む。
	Put(ctx context.Context, path, contentType string, data []byte) error
	// SignedURL はpathを一定期間参照できるURLを返す。
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	// EnsureBucket は保存先が存在しなければ作成する。
	EnsureBucket(ctx context.Context) error
}
