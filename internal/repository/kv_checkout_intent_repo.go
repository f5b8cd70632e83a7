package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// KVCheckoutIntentRepo はEntityStore上のチェックアウト先行書き込みレコードのリポジトリ。
type KVCheckoutIntentRepo struct {
	store EntityStore
}

// NewKVCheckoutIntentRepo はKVCheckoutIntentRepoを生成する。
func NewKVCheckoutIntentRepo(store EntityStore) *KVCheckoutIntentRepo {
	return &KVCheckoutIntentRepo{store: store}
}

// Save はレコードを作成または上書きする。
func (r *KVCheckoutIntentRepo) Save(ctx context.Context, intent *model.CheckoutIntent) error {
	if err := setJSON(ctx, r.store, checkoutKey(intent.ID), intent); err != nil {
		return fmt.Errorf("failed to save checkout intent: %w", err)
	}
	return nil
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *KVCheckoutIntentRepo) FindByID(ctx context.Context, id string) (*model.CheckoutIntent, error) {
	var intent model.CheckoutIntent
	ok, err := getJSON(ctx, r.store, checkoutKey(id), &intent)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout intent: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &intent, nil
}

// ListPending は status が pending のレコードを返す。
// 完了済みレコードも走査するため、件数が増えた場合は完了済みの退避が必要になる。
func (r *KVCheckoutIntentRepo) ListPending(ctx context.Context) ([]*model.CheckoutIntent, error) {
	all, err := scanJSON[model.CheckoutIntent](ctx, r.store, checkoutPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout intents: %w", err)
	}
	var pending []*model.CheckoutIntent
	for _, intent := range all {
		if intent.Status == model.CheckoutPending {
			pending = append(pending, intent)
		}
	}
	return pending, nil
}

// compile-time interface check
var _ CheckoutIntentRepository = (*KVCheckoutIntentRepo)(nil)
