package logo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/karte/internal/model"
	"github.com/hitoshi/karte/internal/repository"
)

// MetricsRecorder はロゴ取得結果の記録インターフェース。
type MetricsRecorder interface {
	RecordLogoFetchSuccess(orgID string)
	RecordLogoFetchFailure(orgID string, reason string)
}

// Scheduler は組織ロゴ取得のスケジューリングと並列制御を行う。
// ティッカーでWebサイトURLを持つ組織を取得し、
// semaphoreパターンで最大並列数を制御しながらロゴ取得を実行する。
type Scheduler struct {
	orgRepo        repository.OrgRepository
	fetcher        FetcherService
	metrics        MetricsRecorder
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。metricsはnil可。
func NewScheduler(
	orgRepo repository.OrgRepository,
	fetcher FetcherService,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		orgRepo:        orgRepo,
		fetcher:        fetcher,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ロゴ取得スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ロゴ取得サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ロゴ取得スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ロゴ取得サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はWebサイトURLを持つ組織を1回取得し、並列でロゴ取得を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	orgs, err := s.orgRepo.ListWithWebsite(ctx)
	if err != nil {
		return err
	}

	if len(orgs) == 0 {
		s.logger.Info("ロゴ取得対象の組織はありません")
		return nil
	}

	s.logger.Info("ロゴ取得サイクルを開始します",
		slog.Int("org_count", len(orgs)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, org := range orgs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(o *model.Org) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.refreshLogo(ctx, o)
		}(org)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("ロゴ取得サイクルが完了しました",
		slog.Int("org_count", len(orgs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// refreshLogo は1組織のロゴを取得して保存する。
// 取得できなかった組織は既存のロゴのまま残す。
func (s *Scheduler) refreshLogo(ctx context.Context, org *model.Org) {
	data, mimeType, err := s.fetcher.FetchForSite(ctx, org.WebsiteURL)
	if err != nil {
		s.logger.Error("ロゴ取得に失敗しました",
			slog.String("org_id", org.ID),
			slog.String("website_url", org.WebsiteURL),
			slog.String("error", err.Error()),
		)
		s.recordFailure(org.ID, "fetch_error")
		return
	}

	if data == nil {
		s.logger.Info("ロゴが見つかりませんでした",
			slog.String("org_id", org.ID),
			slog.String("website_url", org.WebsiteURL),
		)
		s.recordFailure(org.ID, "not_found")
		return
	}

	if err := s.orgRepo.UpdateLogo(ctx, org.ID, data, mimeType); err != nil {
		s.logger.Error("ロゴの保存に失敗しました",
			slog.String("org_id", org.ID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(org.ID, "store_error")
		return
	}

	s.logger.Info("ロゴを更新しました",
		slog.String("org_id", org.ID),
		slog.String("mime_type", mimeType),
		slog.Int("size", len(data)),
	)
	if s.metrics != nil {
		s.metrics.RecordLogoFetchSuccess(org.ID)
	}
}

// recordFailure はメトリクスが設定されている場合に取得失敗を記録する。
func (s *Scheduler) recordFailure(orgID, reason string) {
	if s.metrics != nil {
		s.metrics.RecordLogoFetchFailure(orgID, reason)
	}
}
