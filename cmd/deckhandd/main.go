// Command deckhandd runs the Deckhand rendering service: an HTTP API over a
// bucket-scoped, content-addressed revision store.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/redis/go-redis/v9"

	"github.com/deckhand/deckhand/pkg/api"
	"github.com/deckhand/deckhand/pkg/auditlog"
	"github.com/deckhand/deckhand/pkg/config"
	"github.com/deckhand/deckhand/pkg/observability"
	"github.com/deckhand/deckhand/pkg/render"
	"github.com/deckhand/deckhand/pkg/revision"
	"github.com/deckhand/deckhand/pkg/secretstore"
	"github.com/deckhand/deckhand/pkg/substitution"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	audit := auditlog.NewLogger()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "deckhand",
		ServiceVersion: "1.0.0",
		Environment:    os.Getenv("DECKHAND_ENV"),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		log.Fatalf("[deckhandd] observability setup: %v", err)
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	store, err := buildStore(ctx, cfg, audit, obs)
	if err != nil {
		log.Fatalf("[deckhandd] store setup: %v", err)
	}

	secretClient, err := buildSecretStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[deckhandd] secret store setup: %v", err)
	}

	subPolicy := substitution.FailOnMissingSource
	if !cfg.SubstitutionFailOnMissingSrc {
		subPolicy = substitution.WarnOnMissingSource
	}

	orchestrator := render.NewOrchestrator(store, secretClient, subPolicy).
		WithAudit(audit).
		WithObservability(obs).
		WithTimeout(cfg.RenderTimeout)

	server := api.NewServer(api.Deps{
		Store:        store,
		Orchestrator: orchestrator,
		Audit:        audit,
		AuthRequired: cfg.AuthRequired,
		AuthJWTKey:   cfg.AuthJWTKey,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("[deckhandd] listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[deckhandd] server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("[deckhandd] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
}

// buildStore picks Postgres when DATABASE_URL is set, SQLite otherwise
// ("lite mode"), migrates the schema, and layers the cache/observability/audit
// decorators every store gets regardless of backend.
func buildStore(ctx context.Context, cfg *config.Config, audit auditlog.Logger, obs *observability.Provider) (revision.Store, error) {
	var backing revision.Store

	if cfg.UseSQLite() {
		if err := os.MkdirAll("data", 0o750); err != nil {
			return nil, err
		}
		path := cfg.SQLiteDSN
		if path == "" {
			path = "file:" + filepath.Join("data", "deckhand.db") + "?cache=shared"
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		if err := revision.Migrate(db); err != nil {
			return nil, err
		}
		log.Printf("[deckhandd] lite mode: sqlite at %s", path)
		backing = revision.NewSQLStore(db, revision.DialectSQLite)
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		if err := revision.Migrate(db); err != nil {
			return nil, err
		}
		log.Println("[deckhandd] postgres: connected")
		backing = revision.NewSQLStore(db, revision.DialectPostgres)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		backing = revision.NewCachedStore(backing, rdb, cfg.RenderTimeout)
		log.Printf("[deckhandd] document cache: redis at %s", cfg.RedisAddr)
	}

	return revision.NewAuditedStore(revision.NewObservedStore(backing, obs), audit), nil
}

// buildSecretStore returns the unwrapped client: the render orchestrator
// audits secret access itself (secretstore.NewAuditedClient wraps
// o.SecretClient on every render), so wrapping here too would double-log.
func buildSecretStore(ctx context.Context, cfg *config.Config) (secretstore.Client, error) {
	switch cfg.SecretStoreBackend {
	case "s3":
		return secretstore.NewS3Client(ctx, secretstore.S3Config{
			Bucket: cfg.SecretStoreBucket,
			Region: cfg.AWSRegion,
		})
	default:
		return secretstore.NewMemoryClient(), nil
	}
}
