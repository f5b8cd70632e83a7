package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/config"
	"github.com/hitoshi/ecofinds/internal/database"
	"github.com/hitoshi/ecofinds/internal/imagestore"
	"github.com/hitoshi/ecofinds/internal/repository"
)

const (
	// redisNamespace はRedis上のキーに前置する名前空間。
	redisNamespace = "ecofinds:"
	// memoryBlobBaseURL はメモリBlobStoreが返す擬似URLのベース。
	memoryBlobBaseURL = "memory://images"
	dbPingTimeout     = 5 * time.Second
)

// backends は設定に応じて選択した外部コラボレーターの集合。
type backends struct {
	store   repository.EntityStore
	gateway auth.IdentityGateway
	blobs   imagestore.BlobStore

	closers []func() error
}

// Close は開いた接続を逆順に閉じる。
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackends はEntity Store、Identity Gateway、Blob Storeを設定に従って初期化する。
// 途中で失敗した場合はそれまでに開いた接続を閉じる。
func openBackends(ctx context.Context, cfg *config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if b.store, err = b.openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if b.gateway, err = openGateway(ctx, cfg); err != nil {
		return nil, err
	}
	if b.blobs, err = b.openBlobs(ctx, cfg); err != nil {
		return nil, err
	}

	slog.Info("backends initialized",
		slog.String("store", cfg.StoreBackend),
		slog.String("identity", cfg.IdentityProvider),
		slog.String("blob", cfg.BlobProvider),
	)
	return b, nil
}

func (b *backends) openStore(ctx context.Context, cfg *config.Config) (repository.EntityStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return repository.NewPostgresStore(db), nil

	case config.StoreBackendRedis:
		client, err := repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		store := repository.NewRedisStore(client, redisNamespace)
		b.closers = append(b.closers, store.Close)
		return store, nil

	case config.StoreBackendFirestore:
		client, err := repository.NewFirestoreClient(ctx, cfg.GCPProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		return repository.NewFirestoreStore(client, cfg.FirestoreCollection), nil

	case config.StoreBackendMemory:
		slog.Warn("using in-memory entity store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported store backend: %q", cfg.StoreBackend)
}

func openGateway(ctx context.Context, cfg *config.Config) (auth.IdentityGateway, error) {
	switch cfg.IdentityProvider {
	case config.IdentityProviderFirebase:
		client, err := auth.NewFirebaseAuthClient(ctx, cfg.GCPProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		return auth.NewFirebaseGateway(client), nil

	case config.IdentityProviderDev:
		slog.Warn("using development identity gateway")
		return auth.NewDevGateway(cfg.DevJWTSecret, cfg.DevTokenTTL), nil
	}
	return nil, fmt.Errorf("unsupported identity provider: %q", cfg.IdentityProvider)
}

func (b *backends) openBlobs(ctx context.Context, cfg *config.Config) (imagestore.BlobStore, error) {
	switch cfg.BlobProvider {
	case config.BlobProviderGCS:
		client, err := imagestore.NewGCSClient(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		store := imagestore.NewGCSStore(client, cfg.ImageBucket, cfg.GCPProjectID)
		b.closers = append(b.closers, store.Close)
		return store, nil

	case config.BlobProviderMemory:
		return imagestore.NewMemoryStore(memoryBlobBaseURL), nil
	}
	return nil, fmt.Errorf("unsupported blob provider: %q", cfg.BlobProvider)
}
