package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// KVPurchaseRepo はEntityStore上の購入記録リポジトリ。
// キーにユーザーIDを含めることで履歴取得をプレフィックス走査1回で済ませる。
type KVPurchaseRepo struct {
	store EntityStore
}

// NewKVPurchaseRepo はKVPurchaseRepoを生成する。
func NewKVPurchaseRepo(store EntityStore) *KVPurchaseRepo {
	return &KVPurchaseRepo{store: store}
}

// Create は購入記録を書き込む。
func (r *KVPurchaseRepo) Create(ctx context.Context, purchase *model.Purchase) error {
	if err := setJSON(ctx, r.store, purchaseKey(purchase.UserID, purchase.ID), purchase); err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// FindByID はユーザーの購入記録を取得する。見つからない場合はnilを返す。
func (r *KVPurchaseRepo) FindByID(ctx context.Context, userID, purchaseID string) (*model.Purchase, error) {
	var p model.Purchase
	ok, err := getJSON(ctx, r.store, purchaseKey(userID, purchaseID), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListByUser はユーザーの全購入記録を返す。
func (r *KVPurchaseRepo) ListByUser(ctx context.Context, userID string) ([]*model.Purchase, error) {
	purchases, err := scanJSON[model.Purchase](ctx, r.store, purchaseUserPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

// compile-time interface check
var _ PurchaseRepository = (*KVPurchaseRepo)(nil)
