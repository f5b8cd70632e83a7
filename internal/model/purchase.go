package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase は購入記録。作成後は更新・削除しない。
// Price と Title は購入時点のスナップショットで、商品の変更・削除の影響を受けない。
type Purchase struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ProductID   string          `json:"product_id"`
	PurchasedAt time.Time       `json:"purchased_at"`
	Price       decimal.Decimal `json:"price"`
	Title       string          `json:"title"`
}

// PurchaseHistoryEntry は購入記録に商品情報を結合したもの。
// 商品が削除済みの場合はスナップショットから組み立てた Product を持ち、ProductDeleted が true になる。
type PurchaseHistoryEntry struct {
	Purchase
	Product        *Listing `json:"product"`
	ProductDeleted bool     `json:"product_deleted"`
}

// CheckoutIntentStatus はチェックアウト全体の進行状態。
type CheckoutIntentStatus string

const (
	CheckoutPending   CheckoutIntentStatus = "pending"
	CheckoutCompleted CheckoutIntentStatus = "completed"
)

// CheckoutLineStatus は明細ごとの結果。
type CheckoutLineStatus string

const (
	LinePending   CheckoutLineStatus = "pending"
	LineCommitted CheckoutLineStatus = "committed"
	LineSkipped   CheckoutLineStatus = "skipped"
	LineConflict  CheckoutLineStatus = "conflict"
)

// CheckoutLine はチェックアウト明細。PurchaseID は処理前に採番しておき、再実行時も同じIDを使う。
type CheckoutLine struct {
	ProductID  string             `json:"product_id"`
	PurchaseID string             `json:"purchase_id"`
	Status     CheckoutLineStatus `json:"status"`
}

// CheckoutIntent はチェックアウトの先行書き込みレコード。
// 途中でプロセスが停止しても pending の明細から再開できる。
type CheckoutIntent struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Status      CheckoutIntentStatus `json:"status"`
	PurchasedAt time.Time            `json:"purchased_at"`
	Lines       []CheckoutLine       `json:"lines"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}
