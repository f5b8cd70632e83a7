package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	senderName     = "EcoFinds"
	receiptSubject = "Your EcoFinds purchase"
)

// mailSender はSendGridクライアントのうち送信部分のインターフェース。
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier はSendGrid経由で購入完了メールを送る。
type SendGridNotifier struct {
	client mailSender
	from   string
}

// NewSendGridNotifier はSendGridNotifierを生成する。
func NewSendGridNotifier(apiKey, from string) *SendGridNotifier {
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

// SendPurchaseReceipt は購入した商品の一覧をメールで送る。
func (n *SendGridNotifier) SendPurchaseReceipt(ctx context.Context, receipt Receipt) error {
	if receipt.Email == "" {
		return fmt.Errorf("recipient address is empty")
	}
	if len(receipt.Purchases) == 0 {
		return nil
	}

	body := receiptBody(receipt)
	message := mail.NewSingleEmail(
		mail.NewEmail(senderName, n.from),
		receiptSubject,
		mail.NewEmail(receipt.Username, receipt.Email),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", resp.StatusCode, resp.Body)
	}

	slog.Info("purchase receipt sent",
		slog.Int("status", resp.StatusCode),
		slog.Int("purchases", len(receipt.Purchases)),
	)
	return nil
}

// receiptBody はプレーンテキストの本文を組み立てる。
func receiptBody(receipt Receipt) string {
	var b strings.Builder
	name := receipt.Username
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for shopping second-hand. You bought:\n\n", name)
	for _, p := range receipt.Purchases {
		fmt.Fprintf(&b, "- %s  $%s\n", p.Title, p.Price.StringFixed(2))
	}
	return b.String()
}

var _ Notifier = (*SendGridNotifier)(nil)
