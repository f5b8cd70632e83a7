package checkout

import (
	"context"
	"fmt"
	"sort"

	"github.com/hitoshi/ecofinds/internal/model"
)

// ListPurchases はactorの購入履歴を購入日時の新しい順に返す。
// 商品が残っていれば現在の商品情報を、削除済みなら購入時のスナップショットを結合する。
func (s *Service) ListPurchases(ctx context.Context, actor string) ([]*model.PurchaseHistoryEntry, error) {
	purchases, err := s.purchases.ListByUser(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("購入履歴の取得に失敗しました: %w", err)
	}

	entries := make([]*model.PurchaseHistoryEntry, 0, len(purchases))
	for _, p := range purchases {
		l, err := s.listings.FindByID(ctx, p.ProductID)
		if err != nil {
			return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
		}

		entry := &model.PurchaseHistoryEntry{Purchase: *p, Product: l}
		if l == nil {
			entry.Product = snapshotListing(p)
			entry.ProductDeleted = true
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].PurchasedAt.Equal(entries[j].PurchasedAt) {
			return entries[i].PurchasedAt.After(entries[j].PurchasedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// snapshotListing は削除済み商品の代わりに表示する商品情報を購入記録から組み立てる。
func snapshotListing(p *model.Purchase) *model.Listing {
	return &model.Listing{
		ID:               p.ProductID,
		Title:            p.Title,
		Price:            p.Price,
		ImagePlaceholder: model.DefaultPlaceholder,
		Status:           model.ListingStatusSold,
	}
}
