// Package reconcile は中断されたチェックアウトを再開するバックグラウンドジョブを提供する。
// pending のまま一定時間更新のないチェックアウト意図を定期的に走査し、
// 未処理の明細を同じ購入IDで再実行する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultInterval   = time.Minute
	defaultStaleAfter = 5 * time.Minute
)

// Reconciler は滞留したチェックアウト意図の再開処理を抽象化するインターフェース。
// *checkout.Service が実装する。
type Reconciler interface {
	// Reconcile はstaleAfterより長く更新のない pending 意図を再開し、処理件数を返す。
	Reconcile(ctx context.Context, staleAfter time.Duration) (int, error)
}

// Job はチェックアウト意図の定期リコンサイルジョブ。
// 再実行は購入IDが事前採番されているため冪等。
type Job struct {
	reconciler Reconciler
	logger     *slog.Logger
	Interval   time.Duration // 実行間隔（デフォルト: 1分）
	StaleAfter time.Duration // 再開対象とみなす経過時間（デフォルト: 5分）
}

// NewJob は新しいJobを生成する。
func NewJob(reconciler Reconciler, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		reconciler: reconciler,
		logger:     logger,
		Interval:   defaultInterval,
		StaleAfter: defaultStaleAfter,
	}
}

// RunOnce は滞留した意図を1回走査して再開する。
// 対象がない場合でもエラーにならない。
func (j *Job) RunOnce(ctx context.Context) error {
	start := time.Now()

	n, err := j.reconciler.Reconcile(ctx, j.StaleAfter)
	if err != nil {
		j.logger.Error("チェックアウトのリコンサイルに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("reconciled_count", n),
		)
		return fmt.Errorf("チェックアウトのリコンサイルに失敗: %w", err)
	}

	if n > 0 {
		j.logger.Info("チェックアウトのリコンサイルが完了しました",
			slog.Int("reconciled_count", n),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return nil
}

// Start はInterval間隔でRunOnceを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("リコンサイルジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", j.StaleAfter),
	)

	// エラーはRunOnce内でログ出力済み
	_ = j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("リコンサイルジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.RunOnce(ctx)
		}
	}
}
