// Package cart はユーザーごとの購入予定（カート）を管理する。
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
)

const msgOwnProduct = "Cannot add your own product to cart"

// Service はカート操作のサービス層。
type Service struct {
	carts    repository.CartRepository
	listings repository.ListingRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(carts repository.CartRepository, listings repository.ListingRepository) *Service {
	return &Service{
		carts:    carts,
		listings: listings,
		now:      time.Now,
	}
}

// Add は商品をactorのカートに入れる。
// 同じ商品を再度追加した場合はエントリを増やさず追加日時だけを更新する。
func (s *Service) Add(ctx context.Context, actor, productID string) (*model.CartEntry, error) {
	if productID == "" {
		return nil, model.NewValidationError("Product ID is required")
	}

	l, err := s.listings.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if l == nil {
		return nil, model.NewProductNotFoundError()
	}
	if l.SellerID == actor {
		return nil, model.NewValidationError(msgOwnProduct)
	}
	if l.IsSold() {
		return nil, model.NewProductSoldError()
	}

	entry := &model.CartEntry{
		UserID:    actor,
		ProductID: productID,
		AddedAt:   s.now().UTC(),
	}
	if err := s.carts.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}
	return entry, nil
}

// Remove はカートから商品を取り除く。エントリがなくてもエラーにしない。
func (s *Service) Remove(ctx context.Context, actor, productID string) error {
	if err := s.carts.Delete(ctx, actor, productID); err != nil {
		return fmt.Errorf("カートからの削除に失敗しました: %w", err)
	}
	return nil
}

// List はactorのカートを現在の商品情報と結合して追加日時の新しい順に返す。
// 商品が削除済みのエントリは結果に含めない。
func (s *Service) List(ctx context.Context, actor string) ([]*model.CartItem, error) {
	entries, err := s.carts.ListByUser(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}

	items := make([]*model.CartItem, 0, len(entries))
	for _, e := range entries {
		l, err := s.listings.FindByID(ctx, e.ProductID)
		if err != nil {
			return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
		}
		if l == nil {
			slog.Debug("cart entry references deleted listing",
				slog.String("user_id", actor),
				slog.String("product_id", e.ProductID),
			)
			continue
		}
		items = append(items, &model.CartItem{CartEntry: *e, Product: l})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.After(items[j].AddedAt)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items, nil
}
