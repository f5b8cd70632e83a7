package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reconcile は最終更新からstaleAfter以上経過したpendingのチェックアウトを再開し、
// 完了させた件数を返す。1件の失敗で残りの処理は止めない。
func (s *Service) Reconcile(ctx context.Context, staleAfter time.Duration) (int, error) {
	pending, err := s.intents.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("未完了チェックアウトの取得に失敗しました: %w", err)
	}

	cutoff := s.now().UTC().Add(-staleAfter)
	var (
		resumed int
		errs    []error
	)
	for _, intent := range pending {
		if intent.UpdatedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.run(ctx, intent)
		if err != nil {
			errs = append(errs, fmt.Errorf("checkout %s: %w", intent.ID, err))
			continue
		}
		resumed++
		slog.Info("checkout intent reconciled",
			slog.String("checkout_id", intent.ID),
			slog.String("user_id", intent.UserID),
			slog.Int("purchases", len(result.Purchases)),
			slog.Int("skipped", len(result.Skipped)),
			slog.Int("conflicts", len(result.Conflicts)),
		)
	}

	return resumed, errors.Join(errs...)
}
