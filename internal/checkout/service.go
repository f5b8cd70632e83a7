// Package checkout はカート内の商品を購入記録に変換するチェックアウト処理と、
// 購入履歴の参照を提供する。
//
// 複数キーにまたがるトランザクションがないため、処理前に先行書き込みレコード
// （CheckoutIntent）を保存し、明細ごとに結果を書き戻す。途中で停止した場合は
// Reconcileがpendingの明細から再開する。
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/notify"
	"github.com/hitoshi/ecofinds/internal/repository"
)

const (
	msgProductIDsRequired = "Product IDs array is required"
	msgPurchaseCompleted  = "Purchase completed"

	receiptTimeout = 10 * time.Second
)

// Result はチェックアウトの結果。
// Skippedは存在しなかった商品、Conflictsは他の購入で売却済みだった商品。
type Result struct {
	Message   string            `json:"message"`
	Purchases []*model.Purchase `json:"purchases"`
	Skipped   []string          `json:"skipped"`
	Conflicts []string          `json:"conflicts"`
}

// Repositories はチェックアウトが利用するリポジトリの集合。
type Repositories struct {
	Listings  repository.ListingRepository
	Carts     repository.CartRepository
	Purchases repository.PurchaseRepository
	Intents   repository.CheckoutIntentRepository
	Profiles  repository.ProfileRepository
}

// Service はチェックアウトと購入履歴のサービス層。
type Service struct {
	listings  repository.ListingRepository
	carts     repository.CartRepository
	purchases repository.PurchaseRepository
	intents   repository.CheckoutIntentRepository
	profiles  repository.ProfileRepository
	notifier  notify.Notifier
	metrics   metrics.MetricsCollector
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとmcはnilの場合に何もしない実装を使う。
func NewService(repos Repositories, notifier notify.Notifier, mc metrics.MetricsCollector) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		listings:  repos.Listings,
		carts:     repos.Carts,
		purchases: repos.Purchases,
		intents:   repos.Intents,
		profiles:  repos.Profiles,
		notifier:  notifier,
		metrics:   mc,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Checkout は指定された商品を順に購入する。
// 存在しない商品はスキップし、他の購入で売却済みの商品は競合として結果に含める。
// 全ての明細が競合した場合のみConflictErrorを返す。
func (s *Service) Checkout(ctx context.Context, actor string, productIDs []string) (*Result, error) {
	ids := uniqueIDs(productIDs)
	if len(ids) == 0 {
		return nil, model.NewValidationError(msgProductIDsRequired)
	}

	start := s.now()
	intent := s.newIntent(actor, ids)
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, fmt.Errorf("チェックアウトの開始に失敗しました: %w", err)
	}

	result, err := s.run(ctx, intent)
	if err != nil {
		slog.Error("checkout interrupted",
			slog.String("checkout_id", intent.ID),
			slog.String("user_id", actor),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("チェックアウトの処理に失敗しました: %w", err)
	}
	s.metrics.RecordCheckoutLatency(s.now().Sub(start))

	if len(result.Conflicts) == len(ids) {
		return nil, model.NewProductSoldError()
	}

	s.sendReceipt(ctx, actor, result.Purchases)
	return result, nil
}

// newIntent は購入IDを事前採番した先行書き込みレコードを作る。
// 同じリクエスト内の購入は同じ購入日時を共有する。
func (s *Service) newIntent(actor string, ids []string) *model.CheckoutIntent {
	now := s.now().UTC()
	lines := make([]model.CheckoutLine, len(ids))
	for i, id := range ids {
		lines[i] = model.CheckoutLine{
			ProductID:  id,
			PurchaseID: s.newID(),
			Status:     model.LinePending,
		}
	}
	return &model.CheckoutIntent{
		ID:          s.newID(),
		UserID:      actor,
		Status:      model.CheckoutPending,
		PurchasedAt: now,
		Lines:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// run はpendingの明細を入力順に処理し、明細ごとにレコードを書き戻す。
// 処理済みの明細は再実行せず、結果だけを集計する。
func (s *Service) run(ctx context.Context, intent *model.CheckoutIntent) (*Result, error) {
	result := &Result{
		Message:   msgPurchaseCompleted,
		Purchases: make([]*model.Purchase, 0, len(intent.Lines)),
		Skipped:   make([]string, 0),
		Conflicts: make([]string, 0),
	}

	for i := range intent.Lines {
		line := &intent.Lines[i]

		var purchase *model.Purchase
		if line.Status == model.LinePending {
			p, status, err := s.processLine(ctx, intent, line)
			if err != nil {
				return nil, err
			}
			line.Status = status
			purchase = p

			intent.UpdatedAt = s.now().UTC()
			if err := s.intents.Save(ctx, intent); err != nil {
				return nil, fmt.Errorf("明細の記録に失敗しました: %w", err)
			}
			s.metrics.RecordCheckoutLine(string(status))
		} else if line.Status == model.LineCommitted {
			p, err := s.purchases.FindByID(ctx, intent.UserID, line.PurchaseID)
			if err != nil {
				return nil, fmt.Errorf("購入記録の取得に失敗しました: %w", err)
			}
			purchase = p
		}

		switch line.Status {
		case model.LineCommitted:
			if purchase != nil {
				result.Purchases = append(result.Purchases, purchase)
			}
		case model.LineSkipped:
			result.Skipped = append(result.Skipped, line.ProductID)
		case model.LineConflict:
			result.Conflicts = append(result.Conflicts, line.ProductID)
		}
	}

	intent.Status = model.CheckoutCompleted
	intent.UpdatedAt = s.now().UTC()
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, fmt.Errorf("チェックアウトの完了記録に失敗しました: %w", err)
	}

	s.metrics.RecordPurchases(len(result.Purchases))
	return result, nil
}

// processLine は1明細を処理する。
// 商品を単一キーCASで売却済みにしてから購入記録を作成し、カートから取り除く。
// 中断前に購入記録まで書かれていた明細は、その記録を再利用して書き換えない。
func (s *Service) processLine(
	ctx context.Context,
	intent *model.CheckoutIntent,
	line *model.CheckoutLine,
) (*model.Purchase, model.CheckoutLineStatus, error) {
	existing, err := s.purchases.FindByID(ctx, intent.UserID, line.PurchaseID)
	if err != nil {
		return nil, "", fmt.Errorf("購入記録の取得に失敗しました: %w", err)
	}
	if existing != nil {
		if err := s.carts.Delete(ctx, intent.UserID, line.ProductID); err != nil {
			return nil, "", fmt.Errorf("カートの更新に失敗しました: %w", err)
		}
		return existing, model.LineCommitted, nil
	}

	l, err := s.listings.MarkSold(ctx, line.ProductID, line.PurchaseID)
	switch {
	case errors.Is(err, repository.ErrAlreadySold):
		slog.Warn("checkout line conflicted",
			slog.String("checkout_id", intent.ID),
			slog.String("product_id", line.ProductID),
		)
		return nil, model.LineConflict, nil
	case err != nil:
		return nil, "", fmt.Errorf("商品の確保に失敗しました: %w", err)
	case l == nil:
		slog.Info("checkout line skipped",
			slog.String("checkout_id", intent.ID),
			slog.String("product_id", line.ProductID),
		)
		return nil, model.LineSkipped, nil
	}

	p := &model.Purchase{
		ID:          line.PurchaseID,
		UserID:      intent.UserID,
		ProductID:   line.ProductID,
		PurchasedAt: intent.PurchasedAt,
		Price:       l.Price,
		Title:       l.Title,
	}
	if err := s.purchases.Create(ctx, p); err != nil {
		return nil, "", fmt.Errorf("購入記録の作成に失敗しました: %w", err)
	}
	if err := s.carts.Delete(ctx, intent.UserID, line.ProductID); err != nil {
		return nil, "", fmt.Errorf("カートの更新に失敗しました: %w", err)
	}
	return p, model.LineCommitted, nil
}

// sendReceipt は購入完了通知を送る。失敗はログに残すだけで結果には影響しない。
func (s *Service) sendReceipt(ctx context.Context, actor string, purchases []*model.Purchase) {
	if len(purchases) == 0 {
		return
	}
	profile, err := s.profiles.FindByID(ctx, actor)
	if err != nil || profile == nil || profile.Email == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
	defer cancel()
	err = s.notifier.SendPurchaseReceipt(ctx, notify.Receipt{
		Email:     profile.Email,
		Username:  profile.Username,
		Purchases: purchases,
	})
	if err != nil {
		slog.Warn("purchase receipt not sent",
			slog.String("user_id", actor),
			slog.String("error", err.Error()),
		)
	}
}

// uniqueIDs は空文字と重複を除き、入力順を保ったIDの一覧を返す。
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
