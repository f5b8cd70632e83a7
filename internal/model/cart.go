package model

import "time"

// CartEntry はユーザーの購入予定を表す。
// (UserID, ProductID) の組につき最大1件。
type CartEntry struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// CartItem はカートエントリに現在の商品情報を結合したもの。
type CartItem struct {
	CartEntry
	Product *Listing `json:"product"`
}
