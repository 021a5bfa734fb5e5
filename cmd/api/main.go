package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/goodfinds-backend/internal/ai"
	"github.com/shinyyama/goodfinds-backend/internal/cache"
	"github.com/shinyyama/goodfinds-backend/internal/config"
	"github.com/shinyyama/goodfinds-backend/internal/db"
	"github.com/shinyyama/goodfinds-backend/internal/lock"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	appmw "github.com/shinyyama/goodfinds-backend/internal/middleware"
	"github.com/shinyyama/goodfinds-backend/internal/server"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()
	log := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	ctx := context.Background()
	opts := server.Options{
		DB:             conn,
		AllowedOrigins: cfg.AllowedOrigins,
		SHA:            gitSHA,
		BuildTime:      buildTime,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		opts.Locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		opts.Cache = cache.NewRedisReputationCache(rdb, cfg.ReputationCacheTTL)
		log.Infof("redis enabled at %s", cfg.RedisAddr)
	} else {
		opts.Locker = lock.NewLocalLocker()
		opts.Cache = cache.NewMemoryReputationCache(cfg.ReputationCacheTTL)
		log.Warn("REDIS_ADDR not set; using in-process locks and cache (single instance only)")
	}

	switch {
	case cfg.FirebaseProjectID != "":
		fv, err := appmw.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
		if err != nil {
			log.Fatalf("failed to init firebase auth: %v", err)
		}
		opts.Verifier = fv
		opts.Directory = fv.Client()
	case cfg.JWTSecret != "":
		jv, err := appmw.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			log.Fatalf("failed to init jwt auth: %v", err)
		}
		opts.Verifier = jv
	default:
		log.Warn("neither FIREBASE_PROJECT_ID nor JWT_SECRET is set; authenticated routes will reject every request")
	}

	if cfg.GeminiAPIKey != "" {
		gc, err := ai.NewGeminiCategoryClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Errorf("gemini init failed, category suggestion disabled: %v", err)
		} else {
			opts.Suggester = gc
		}
	}

	srv := server.New(opts)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	case s := <-sig:
		log.Infof("received %s, shutting down", s)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}
}
