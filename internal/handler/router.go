package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/karte/internal/middleware"
)

// HealthChecker はDB接続の死活確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 復帰ポインタ
	IntentService FullIntentService

	// 招待
	InviteService InviteServiceInterface
	AcceptService AcceptServiceInterface

	// 組織
	OrgService OrgServiceInterface

	// ユーザー
	OnboardingService OnboardingServiceInterface
	UserFinder        UserFinder

	// クライアント・予約
	ClientService      ClientServiceInterface
	AppointmentService AppointmentServiceInterface

	// メトリクス。nil可
	InviteMetrics  InviteMetrics
	RequestMetrics middleware.RequestMetricsRecorder
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）と招待プレビューはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default(), deps.RequestMetrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.IntentService, deps.AuthConfig)
	inviteHandler := NewInviteHandler(deps.InviteService, deps.AcceptService, deps.UserFinder, deps.InviteMetrics)
	orgHandler := NewOrgHandler(deps.OrgService, deps.UserFinder)
	userHandler := NewUserHandler(deps.OnboardingService)
	clientHandler := NewClientHandler(deps.ClientService)
	apptHandler := NewAppointmentHandler(deps.AppointmentService)
	intentHandler := NewIntentHandler(deps.IntentService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerヘルスチェック用）
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 招待プレビュー（受諾前の内容確認。未認証でも到達できる）
	r.Get("/api/invites/{token}/preview", inviteHandler.Preview)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 招待受諾（受諾専用レート制限を追加）
		r.With(deps.RateLimiter.InviteAcceptMiddleware()).
			Post("/api/invites/{token}/accept", inviteHandler.Accept)

		// 組織管理
		r.Route("/api/orgs", func(r chi.Router) {
			r.Get("/", orgHandler.ListMine)
			r.Post("/", orgHandler.Create)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Post("/select", orgHandler.Select)
				r.Get("/logo", orgHandler.Logo)
				r.Get("/members", orgHandler.Roster)

				// 招待管理（サービス層で管理権限を検証する）
				r.Route("/invites", func(r chi.Router) {
					r.Post("/", inviteHandler.Issue)
					r.Get("/", inviteHandler.List)
					r.Delete("/{inviteID}", inviteHandler.Revoke)
					r.Post("/{inviteID}/approve", inviteHandler.Approve)
				})

				// クライアント管理
				r.Route("/clients", func(r chi.Router) {
					r.Get("/", clientHandler.List)
					r.Post("/", clientHandler.Create)
					r.Route("/{clientID}", func(r chi.Router) {
						r.Get("/", clientHandler.Get)
						r.Put("/", clientHandler.Update)
						r.Delete("/", clientHandler.Delete)
					})
				})

				// 予約管理
				r.Route("/appointments", func(r chi.Router) {
					r.Get("/", apptHandler.List)
					r.Post("/", apptHandler.Create)
					r.Route("/{apptID}", func(r chi.Router) {
						r.Get("/", apptHandler.Get)
						r.Put("/", apptHandler.Update)
						r.Delete("/", apptHandler.Delete)
					})
				})
			})
		})

		// オンボーディング
		r.Post("/api/users/me/onboarding", userHandler.CompleteOnboarding)

		// 復帰ポインタ
		r.Route("/api/intents/{kind}", func(r chi.Router) {
			r.Put("/", intentHandler.Set)
			r.Get("/", intentHandler.Peek)
			r.Post("/consume", intentHandler.Consume)
			r.Delete("/", intentHandler.Clear)
		})
	})

	return r
}
