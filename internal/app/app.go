package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/cart"
	"github.com/hitoshi/ecofinds/internal/checkout"
	"github.com/hitoshi/ecofinds/internal/config"
	"github.com/hitoshi/ecofinds/internal/database"
	"github.com/hitoshi/ecofinds/internal/handler"
	"github.com/hitoshi/ecofinds/internal/imagestore"
	"github.com/hitoshi/ecofinds/internal/listing"
	"github.com/hitoshi/ecofinds/internal/logger"
	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/notify"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
	"github.com/hitoshi/ecofinds/internal/user"
	"github.com/hitoshi/ecofinds/internal/worker/reconcile"
)

const (
	shutdownTimeout      = 30 * time.Second
	ensureBucketTimeout  = 15 * time.Second
	healthcheckTimeout   = 5 * time.Second
	defaultHealthBaseURL = "/api"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMを受信するとコンテキストをキャンセルしてシャットダウンする。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はコマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// ctxがキャンセルされるとserveとworkerは停止する。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		basePath := os.Getenv("API_BASE_PATH")
		if basePath == "" {
			basePath = defaultHealthBaseURL
		}
		return runHealthcheck(ctx, "http://localhost:"+port, basePath)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, ParseMigrateDirection(args))
	default:
		return runServe(ctx, cfg)
	}
}

// services はHTTP層とワーカーが使うドメインサービスの集合。
type services struct {
	listing  *listing.Service
	cart     *cart.Service
	checkout *checkout.Service
	user     *user.Service
	image    *imagestore.Service
}

// newServices はリポジトリとドメインサービスを組み立てる。
func newServices(cfg *config.Config, b *backends, mc metrics.MetricsCollector) *services {
	listings := repository.NewKVListingRepo(b.store)
	carts := repository.NewKVCartRepo(b.store)
	profiles := repository.NewKVProfileRepo(b.store)
	sanitizer := security.NewTextSanitizer()

	listingSvc := listing.NewService(listings, sanitizer, mc)

	// nilの*listing.Serviceをインターフェースに入れないよう明示的に分岐する
	var seeder user.DemoSeeder
	if cfg.SeedDemoProducts {
		seeder = listingSvc
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.SendGridAPIKey != "" {
		notifier = notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.MailFrom)
	}

	return &services{
		listing: listingSvc,
		cart:    cart.NewService(carts, listings),
		checkout: checkout.NewService(checkout.Repositories{
			Listings:  listings,
			Carts:     carts,
			Purchases: repository.NewKVPurchaseRepo(b.store),
			Intents:   repository.NewKVCheckoutIntentRepo(b.store),
			Profiles:  profiles,
		}, notifier, mc),
		user: user.NewService(b.gateway, profiles, sanitizer, seeder),
		image: imagestore.NewService(b.blobs, imagestore.Config{
			MaxBytes: cfg.ImageMaxBytes,
			URLTTL:   cfg.ImageURLTTL,
		}, mc),
	}
}

// newServer は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返されるstop関数はレートリミッターのクリーンアップを停止する。
func newServer(cfg *config.Config, b *backends) (http.Handler, func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)
	svc := newServices(cfg, b, mc)

	rl := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload))

	deps := &handler.RouterDeps{
		BasePath:           cfg.APIBasePath,
		Logger:             slog.Default(),
		Metrics:            mc,
		MetricsHandler:     metrics.Handler(reg),
		TokenResolver:      b.gateway,
		AnonKey:            cfg.AnonKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rl,
		ListingService:     svc.listing,
		CartService:        svc.cart,
		CheckoutService:    svc.checkout,
		UserService:        svc.user,
		ImageService:       svc.image,
	}
	if dev, ok := b.gateway.(*auth.DevGateway); ok {
		deps.DevSignIn = dev
	}
	return handler.NewRouter(deps), rl.Stop
}

// runServe はAPIサーバーモードで起動する。
// バックエンドを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer b.Close()

	ensureBucket(ctx, b.blobs)

	router, stopLimiter := newServer(cfg, b)
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// ensureBucket は画像バケットを作成する。失敗しても起動は継続する。
func ensureBucket(ctx context.Context, blobs imagestore.BlobStore) {
	ctx, cancel := context.WithTimeout(ctx, ensureBucketTimeout)
	defer cancel()

	if err := blobs.EnsureBucket(ctx); err != nil {
		slog.Warn("failed to ensure image bucket", slog.String("error", err.Error()))
		return
	}
	slog.Info("image bucket ready")
}

// runWorker はワーカーモードで起動する。
// バックエンドを開き、中断されたチェックアウトのリコンサイルを定期実行する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer b.Close()

	svc := newServices(cfg, b, metrics.Nop{})

	job := reconcile.NewJob(svc.checkout, slog.Default())
	job.Interval = cfg.ReconcileInterval
	job.StaleAfter = cfg.ReconcileStaleAfter

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Duration("reconcile_stale_after", cfg.ReconcileStaleAfter),
	)

	// リコンサイルジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はkv_storeテーブルのマイグレーションを実行する。
// PostgreSQLバックエンドでのみ有効。
func runMigrate(cfg *config.Config, dir MigrateDirection) error {
	if !cfg.RequiresDatabase() {
		return fmt.Errorf("migrate requires STORE_BACKEND=%s (got %q)", config.StoreBackendPostgres, cfg.StoreBackend)
	}

	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch dir {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// <basePath>/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL, basePath string) error {
	path := "/health"
	if p := strings.Trim(basePath, "/"); p != "" {
		path = "/" + p + path
	}
	url := strings.TrimRight(baseURL, "/") + path

	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
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
