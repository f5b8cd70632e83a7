// Package repository はデータ永続化のインターフェースを定義する。
//
// 永続化の実体はキーと JSON 値のフラットな KV ストア（EntityStore）で、
// 各リポジトリはキー体系とエンコードだけを受け持つ。
// 複数キーにまたがるトランザクションは存在しない。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/ecofinds/internal/model"
)

// ErrAlreadySold は別の購入で売却済みの商品を売却しようとした場合に返る。
var ErrAlreadySold = errors.New("listing already sold")

// ErrContention はCASの再試行回数を使い切った場合に返る。
var ErrContention = errors.New("listing is being modified concurrently")

// Entry はプレフィックススキャンの結果1件。
type Entry struct {
	Key   string
	Value []byte
}

// EntityStore はキー単位の読み書きとプレフィックス走査を提供するKVストア。
type EntityStore interface {
	// Get は指定キーの値を返す。見つからない場合はnilを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set は指定キーに値を書き込む。既存値は上書きされる（last write wins）。
	Set(ctx context.Context, key string, value []byte) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error

	// ScanPrefix はキーが prefix で始まる全エントリをキー昇順で返す。
	ScanPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// CompareAndSwap は現在値が old と一致する場合のみ new を書き込む。
	// 書き込んだ場合は true を返す。キーが存在しない場合は false。
	CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error)
}

// ListingRepository は商品データの永続化インターフェース。
type ListingRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// Save は商品を作成または上書きする。
	Save(ctx context.Context, listing *model.Listing) error

	// Delete は商品を削除する。カート・購入記録へはカスケードしない。
	Delete(ctx context.Context, id string) error

	// ListAll は全商品を返す。順序は保証しない。
	ListAll(ctx context.Context) ([]*model.Listing, error)

	// Modify は商品を最新の値に対してfnで変更し、単一キーCASで書き戻す。
	// 商品がない場合はnilを返す。fnのエラーはそのまま返し、書き込みは行わない。
	Modify(ctx context.Context, id string, fn func(*model.Listing) error) (*model.Listing, error)

	// MarkSold は商品を purchaseID による売却済みに単一キーCASで更新する。
	// 商品がない場合はnil、他の購入で売却済みの場合はErrAlreadySoldを返す。
	// 同じ purchaseID で売却済みの場合は成功として扱う（再実行の冪等性）。
	MarkSold(ctx context.Context, id, purchaseID string) (*model.Listing, error)
}

// CartRepository はカートエントリの永続化インターフェース。
type CartRepository interface {
	// Upsert は (UserID, ProductID) のエントリを作成または上書きする。
	Upsert(ctx context.Context, entry *model.CartEntry) error

	// Delete はエントリを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, productID string) error

	// ListByUser はユーザーの全エントリを返す。
	ListByUser(ctx context.Context, userID string) ([]*model.CartEntry, error)
}

// PurchaseRepository は購入記録の永続化インターフェース。
type PurchaseRepository interface {
	// Create は購入記録を書き込む。作成後の記録は書き換えない。
	Create(ctx context.Context, purchase *model.Purchase) error

	// FindByID はユーザーの購入記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, purchaseID string) (*model.Purchase, error)

	// ListByUser はユーザーの全購入記録を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error)
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID string) (*model.Profile, error)

	// Save はプロフィールを作成または上書きする。
	Save(ctx context.Context, profile *model.Profile) error
}

// CheckoutIntentRepository はチェックアウト先行書き込みレコードの永続化インターフェース。
type CheckoutIntentRepository interface {
	// Save はレコードを作成または上書きする。
	Save(ctx context.Context, intent *model.CheckoutIntent) error

	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CheckoutIntent, error)

	// ListPending は status が pending のレコードを返す。
	ListPending(ctx context.Context) ([]*model.CheckoutIntent, error)
}
