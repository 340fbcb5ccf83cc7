// Package maintenance は期限切れデータの定期整理ジョブを提供する。
// 期限超過したpending招待のexpired遷移、期限切れセッションの削除、
// 放置されたナビゲーション意図の削除を日次バッチで実行する。
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultIntentRetention はナビゲーション意図の保持期間（デフォルト30日）。
const defaultIntentRetention = 30 * 24 * time.Hour

// InviteExpirer は期限超過招待のexpired遷移インターフェース。
type InviteExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// SessionPurger は期限切れセッションの削除インターフェース。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// IntentPurger は古いナビゲーション意図の削除インターフェース。
type IntentPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetricsRecorder はメンテナンス削除件数の記録インターフェース。
type MetricsRecorder interface {
	RecordMaintenanceDeleted(kind string, count int64)
}

// Job は期限切れデータの定期整理ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な処理を保証する。
type Job struct {
	invites  InviteExpirer
	sessions SessionPurger
	intents  IntentPurger
	metrics  MetricsRecorder
	logger   *slog.Logger

	// IntentRetention はナビゲーション意図の保持期間（デフォルト: 30日）。
	IntentRetention time.Duration
}

// NewJob は新しいJobを生成する。metricsはnil可。
func NewJob(
	invites InviteExpirer,
	sessions SessionPurger,
	intents IntentPurger,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Job {
	return &Job{
		invites:         invites,
		sessions:        sessions,
		intents:         intents,
		metrics:         metrics,
		logger:          logger,
		IntentRetention: defaultIntentRetention,
	}
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("メンテナンスジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("メンテナンスジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("メンテナンスジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("メンテナンスジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れデータの整理を1回実行する。
// 各ステップは冪等で、対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	now := time.Now()

	expired, err := j.invites.ExpireOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("期限超過招待の整理に失敗: %w", err)
	}
	j.record("invite_expired", expired)

	sessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	j.record("session", sessions)

	cutoff := now.Add(-j.IntentRetention)
	intents, err := j.intents.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("ナビゲーション意図の削除に失敗: %w", err)
	}
	j.record("nav_intent", intents)

	duration := time.Since(start)
	j.logger.Info("メンテナンスジョブが完了しました",
		slog.Int64("expired_invites", expired),
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_intents", intents),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// record はメトリクスが設定されている場合に削除件数を記録する。
func (j *Job) record(kind string, count int64) {
	if j.metrics != nil {
		j.metrics.RecordMaintenanceDeleted(kind, count)
	}
}
