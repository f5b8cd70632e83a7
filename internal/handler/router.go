package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ルーティング
	BasePath string

	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler
	TokenResolver      middleware.TokenResolver
	AnonKey            string
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter

	// サービス
	ListingService  ListingServiceInterface
	CartService     CartServiceInterface
	CheckoutService CheckoutServiceInterface
	UserService     UserServiceInterface
	ImageService    ImageServiceInterface

	// DevSignIn は開発用IDプロバイダーの場合のみ設定する。nilなら /dev/token を公開しない。
	DevSignIn DevSignInServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  → 公開ルート: AnonKey
//	  → ユーザールート: Auth → RateLimit(General)
//
// /upload-image には画像アップロード用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	listingHandler := NewListingHandler(deps.ListingService)
	cartHandler := NewCartHandler(deps.CartService)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	userHandler := NewUserHandler(deps.UserService)
	uploadHandler := NewUploadHandler(deps.ImageService)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route(normalizeBasePath(deps.BasePath), func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Get("/health", Health)

		// --- 公開キーまたはユーザートークンで呼べるルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAnonKeyMiddleware(deps.AnonKey, deps.TokenResolver))

			r.Post("/signup", userHandler.Signup)
			r.Get("/products", listingHandler.ListProducts)
			r.Get("/products/{id}", listingHandler.GetProduct)

			if deps.DevSignIn != nil {
				r.Post("/dev/token", NewDevTokenHandler(deps.DevSignIn).IssueToken)
			}
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// プロフィール
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)

			// 画像アップロード（アップロード専用レート制限を追加）
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/upload-image", uploadHandler.UploadImage)

			// 商品管理
			r.Post("/products", listingHandler.CreateProduct)
			r.Get("/my-products", listingHandler.ListMyProducts)
			r.Put("/products/{id}", listingHandler.UpdateProduct)
			r.Delete("/products/{id}", listingHandler.DeleteProduct)

			// カート
			r.Route("/cart", func(r chi.Router) {
				r.Post("/", cartHandler.AddToCart)
				r.Get("/", cartHandler.GetCart)
				r.Delete("/{productId}", cartHandler.RemoveFromCart)
			})

			// 購入
			r.Post("/purchase", checkoutHandler.Checkout)
			r.Get("/purchases", checkoutHandler.ListPurchases)
		})
	})

	return r
}

// normalizeBasePath はベースパスを "/api" の形式に揃える。空の場合はルート。
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
