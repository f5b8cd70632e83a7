package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/ecofinds/internal/model"
)

// DemoSellerID はデモ商品の出品者ID。実在ユーザーと衝突しない固定値。
const DemoSellerID = "demo-seller"

type demoProduct struct {
	title       string
	description string
	category    string
	price       string
	placeholder string
	imageURL    string
	age         time.Duration
}

var demoProducts = []demoProduct{
	{
		title:       "Vintage Leather Jacket",
		description: "Classic brown leather jacket in excellent condition. Perfect for sustainable fashion lovers.",
		category:    "Clothing",
		price:       "89.99",
		placeholder: "🧥",
		imageURL:    "https://images.unsplash.com/photo-1744743128385-990e02da095f?crop=entropy&cs=tinysrgb&fit=max&fm=jpg&q=80&w=1080",
	},
	{
		title:       "MacBook Air (Pre-owned)",
		description: "2020 MacBook Air in great condition. Battery still holds excellent charge. Perfect for students or professionals.",
		category:    "Electronics",
		price:       "699.00",
		placeholder: "💻",
		imageURL:    "https://images.unsplash.com/photo-1754928864131-21917af96dfd?crop=entropy&cs=tinysrgb&fit=max&fm=jpg&q=80&w=1080",
		age:         24 * time.Hour,
	},
	{
		title:       "Ceramic Planter Set",
		description: "Beautiful set of 3 ceramic planters with drainage holes. Perfect for your favorite succulents or herbs.",
		category:    "Home & Garden",
		price:       "34.50",
		placeholder: "🪴",
		imageURL:    "https://images.unsplash.com/photo-1611527664755-031c7d3225ab?crop=entropy&cs=tinysrgb&fit=max&fm=jpg&q=80&w=1080",
		age:         48 * time.Hour,
	},
}

// SeedDemo はデモアカウント向けのサンプル商品を作成し、作成件数を返す。
// 商品はDemoSellerIDの出品なので、デモユーザー自身がカートに入れて購入できる。
func (s *Service) SeedDemo(ctx context.Context) (int, error) {
	now := s.now().UTC()

	for i, p := range demoProducts {
		imageURL := p.imageURL
		l := &model.Listing{
			ID:               s.newID(),
			Title:            p.title,
			Description:      p.description,
			Category:         p.category,
			Price:            decimal.RequireFromString(p.price),
			SellerID:         DemoSellerID,
			CreatedAt:        now.Add(-p.age),
			ImagePlaceholder: p.placeholder,
			ImageURL:         &imageURL,
			Status:           model.ListingStatusActive,
		}
		if err := s.repo.Save(ctx, l); err != nil {
			return i, fmt.Errorf("デモ商品の作成に失敗しました: %w", err)
		}
	}

	slog.Info("demo listings seeded", slog.Int("count", len(demoProducts)))
	return len(demoProducts), nil
}
