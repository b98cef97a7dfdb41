package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pressline.org/internal/auth"
	"pressline.org/internal/cache"
	"pressline.org/internal/config"
	"pressline.org/internal/content"
	"pressline.org/internal/httpapi"
	"pressline.org/internal/obs"
	"pressline.org/internal/store/memory"
	"pressline.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	// Postgres when a DSN is set; the in-process store otherwise. The latter
	// keeps local development and smoke testing possible without a database.
	var (
		db        *sql.DB
		authStore auth.Store
		postStore content.Store
	)
	if cfg.DatabaseDSN != "" {
		db, err = pg.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		authStore = pg.NewStore(db)
		postStore = pg.NewPostStore(db)
	} else {
		log.Println("PG_DSN is not set, using the in-process store")
		authStore = memory.New()
		postStore = content.NewInMemoryStore()
	}

	codec, err := auth.NewCodec(cfg.TokenSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	authSvc, err := auth.NewService(authStore, codec, auth.NewHasher(cfg.BcryptCost),
		auth.WithRevokeOnRotate(cfg.RevokeOnRotate),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	admin, err := auth.NewAdmin(authStore)
	if err != nil {
		log.Fatalf("admin service: %v", err)
	}

	// Redis cache when reachable; in-process cache otherwise.
	var postCache cache.Cache
	if cfg.RedisAddr != "" {
		if rdb := cache.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rdb != nil {
			postCache = cache.NewRedis(rdb)
		} else {
			log.Printf("redis at %s unreachable, falling back to the in-process cache", cfg.RedisAddr)
		}
	}
	if postCache == nil {
		postCache = cache.NewMemory(cfg.CacheTTL)
	}
	posts, err := content.NewService(postStore, content.WithCache(postCache, cfg.CacheTTL))
	if err != nil {
		log.Fatalf("content service: %v", err)
	}

	api := httpapi.New(authSvc, admin, posts, httpapi.ReadyProbe{DB: db}, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Denylist entries outlive their tokens without this.
	if cfg.RevokeOnRotate && db != nil {
		go purgeRevokedTokens(ctx, pg.NewStore(db))
	}

	log.Printf("Starting pressline-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func purgeRevokedTokens(ctx context.Context, st *pg.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if n, err := st.PurgeExpiredTokens(ctx); err != nil {
			log.Printf("purge revoked tokens: %v", err)
		} else if n > 0 {
			log.Printf("purged %d expired revoked tokens", n)
		}
	}
}
