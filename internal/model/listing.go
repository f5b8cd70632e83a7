package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 価格はJSON上で数値として扱う（クライアントは number を期待する）
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultPlaceholder は画像未設定の商品に表示するグリフ。
const DefaultPlaceholder = "📦"

// ListingStatus は商品の販売状態を表す。
type ListingStatus string

const (
	// ListingStatusActive は購入可能な状態。
	ListingStatusActive ListingStatus = "active"
	// ListingStatusSold はチェックアウト済みの状態。
	ListingStatusSold ListingStatus = "sold"
)

// Listing は出品された商品を表す。
// ID、SellerID、CreatedAt は作成後に変更されない。
type Listing struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Price            decimal.Decimal `json:"price"`
	SellerID         string          `json:"seller_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
	ImagePlaceholder string          `json:"image_placeholder"`
	ImageURL         *string         `json:"image_url"`
	ImagePath        *string         `json:"image_path"`
	Status           ListingStatus   `json:"status"`
	SoldPurchaseID   string          `json:"sold_purchase_id,omitempty"`
}

// IsSold は商品が売却済みかどうかを返す。
// status を持たない旧データは active とみなす。
func (l *Listing) IsSold() bool {
	return l.Status == ListingStatusSold
}

// ListingFilter は商品一覧の絞り込み条件。
type ListingFilter struct {
	Category string
	Search   string
}
