// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/karte/internal/appointment"
	"github.com/hitoshi/karte/internal/auth"
	"github.com/hitoshi/karte/internal/client"
	"github.com/hitoshi/karte/internal/config"
	"github.com/hitoshi/karte/internal/database"
	"github.com/hitoshi/karte/internal/handler"
	"github.com/hitoshi/karte/internal/invite"
	"github.com/hitoshi/karte/internal/logger"
	"github.com/hitoshi/karte/internal/membership"
	"github.com/hitoshi/karte/internal/metrics"
	"github.com/hitoshi/karte/internal/middleware"
	"github.com/hitoshi/karte/internal/navintent"
	"github.com/hitoshi/karte/internal/onboarding"
	"github.com/hitoshi/karte/internal/org"
	"github.com/hitoshi/karte/internal/repository"
	"github.com/hitoshi/karte/internal/security"
	logopkg "github.com/hitoshi/karte/internal/worker/logo"
	"github.com/hitoshi/karte/internal/worker/maintenance"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	orgRepo := repository.NewPostgresOrgRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	membershipRepo := repository.NewPostgresMembershipRepo(db)
	inviteRepo := repository.NewPostgresInviteRepo(db)
	tokenRepo := repository.NewPostgresInviteTokenRepo(db)
	navIntentRepo := repository.NewPostgresNavIntentRepo(db)
	clientRepo := repository.NewPostgresClientRepo(db)
	apptRepo := repository.NewPostgresAppointmentRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	intentService := navintent.NewService(navIntentRepo)

	scope := org.NewScope(memberRepo)
	granter := membership.NewGranter(memberRepo, membershipRepo, orgRepo)
	orgService := org.NewService(orgRepo, membershipRepo, userRepo, scope, granter, ssrfGuard)

	inviteService := invite.NewService(inviteRepo, memberRepo, userRepo, granter, invite.ServiceConfig{
		InviteTTL: cfg.InviteTTL,
		BaseURL:   cfg.BaseURL,
	})
	acceptService := invite.NewAcceptService(
		tokenRepo, inviteRepo, userRepo, orgRepo, granter, intentService,
	)

	onboardingService := onboarding.NewService(userRepo, intentService)
	clientService := client.NewService(clientRepo, scope, sanitizer)
	apptService := appointment.NewService(apptRepo, clientRepo, scope)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレートはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitInviteAccept > 0 {
		rateLimiterCfg.InviteRate = rate.Limit(float64(cfg.RateLimitInviteAccept) / 60.0)
		rateLimiterCfg.InviteBurst = cfg.RateLimitInviteAccept
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		IntentService: intentService,

		InviteService: inviteService,
		AcceptService: acceptService,

		OrgService: orgService,

		OnboardingService: onboardingService,
		UserFinder:        userRepo,

		ClientService:      clientService,
		AppointmentService: apptService,

		InviteMetrics:  collector,
		RequestMetrics: collector,
		MetricsHandler: metrics.SetupMetricsRoute(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、ロゴ取得スケジューラとメンテナンスジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	orgRepo := repository.NewPostgresOrgRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	inviteRepo := repository.NewPostgresInviteRepo(db)
	navIntentRepo := repository.NewPostgresNavIntentRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ロゴフェッチャーの初期化
	fetcher := logopkg.NewFetcher(ssrfGuard)
	fetcher.Timeout = cfg.LogoFetchTimeout
	fetcher.MaxSize = cfg.LogoMaxSize

	scheduler := logopkg.NewScheduler(
		orgRepo, fetcher, collector, slog.Default(), cfg.LogoMaxConcurrent,
	)

	// 5. メンテナンスジョブの初期化
	maintenanceJob := maintenance.NewJob(
		inviteRepo, sessionRepo, navIntentRepo, collector, slog.Default(),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("logo_interval", cfg.LogoInterval),
		slog.Duration("maintenance_interval", cfg.MaintenanceInterval),
		slog.Int("logo_max_concurrent", cfg.LogoMaxConcurrent),
	)

	// メンテナンスジョブをバックグラウンドで起動
	go maintenanceJob.Start(ctx, cfg.MaintenanceInterval)

	// ロゴ取得スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.LogoInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
