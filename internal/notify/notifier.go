// Package notify は購入完了などの利用者向け通知を送る。
package notify

import (
	"context"

	"github.com/hitoshi/ecofinds/internal/model"
)

// Receipt は購入完了通知の内容。
type Receipt struct {
	Email     string
	Username  string
	Purchases []*model.Purchase
}

// Notifier は通知送信のインターフェース。
// 呼び出し側は送信失敗をログに残すだけで、業務処理の結果には反映しない。
type Notifier interface {
	SendPurchaseReceipt(ctx context.Context, receipt Receipt) error
}

// Nop は何も送信しないNotifier。
type Nop struct{}

// SendPurchaseReceipt は何もしない。
func (Nop) SendPurchaseReceipt(context.Context, Receipt) error { return nil }

var _ Notifier = Nop{}
