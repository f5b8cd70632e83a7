package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// KVCartRepo はEntityStore上のカートリポジトリ。
// キーが (user, product) で一意のため、Upsertは重複を作らない。
type KVCartRepo struct {
	store EntityStore
}

// NewKVCartRepo はKVCartRepoを生成する。
func NewKVCartRepo(store EntityStore) *KVCartRepo {
	return &KVCartRepo{store: store}
}

// Upsert はエントリを作成または上書きする。
func (r *KVCartRepo) Upsert(ctx context.Context, entry *model.CartEntry) error {
	if err := setJSON(ctx, r.store, cartKey(entry.UserID, entry.ProductID), entry); err != nil {
		return fmt.Errorf("failed to upsert cart entry: %w", err)
	}
	return nil
}

// Delete はエントリを削除する。
func (r *KVCartRepo) Delete(ctx context.Context, userID, productID string) error {
	if err := r.store.Delete(ctx, cartKey(userID, productID)); err != nil {
		return fmt.Errorf("failed to delete cart entry: %w", err)
	}
	return nil
}

// ListByUser はユーザーの全エントリを返す。
func (r *KVCartRepo) ListByUser(ctx context.Context, userID string) ([]*model.CartEntry, error) {
	entries, err := scanJSON[model.CartEntry](ctx, r.store, cartUserPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list cart entries: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ CartRepository = (*KVCartRepo)(nil)
