package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/career-chat/internal/ai"
	"github.com/suPer8Hu/career-chat/internal/chat"
	"github.com/suPer8Hu/career-chat/internal/config"
	"github.com/suPer8Hu/career-chat/internal/db"
	"github.com/suPer8Hu/career-chat/internal/httpapi"
	"github.com/suPer8Hu/career-chat/internal/session"
	"github.com/suPer8Hu/career-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/career-chat/internal/store/redisstore"
	"github.com/suPer8Hu/career-chat/internal/upload"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	repo := upload.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		logger.Fatalf("db migrate: %v", err)
	}

	// session store
	var (
		store session.Store
		mem   *session.MemoryStore
	)
	switch cfg.SessionStore {
	case "redis":
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rds.Ping(ctx); err != nil {
			logger.Fatalf("redis ping: %v", err)
		}
		defer rds.Close()
		store = rds
	default:
		mem = session.NewMemoryStore()
		store = mem
	}

	// delayed cleanup, the janitor sweep covers it when rabbit is not configured
	var scheduler upload.Scheduler = upload.NoopScheduler{}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Fatalf("rabbit publisher: %v", err)
		}
		defer pub.Close()
		scheduler = pub
	}

	provider, err := ai.NewDefaultRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		logger.Fatalf("ai provider: %v", err)
	}

	uploads := upload.NewStore(cfg.UploadDir, repo, scheduler, cfg.UploadRetention, cfg.MaxUploadBytes)
	files := session.NewFileCache(store, cfg.SessionTTL)
	svc := chat.NewService(files, uploads, upload.NewValidator(cfg.AllowedExtensions), provider, cfg.CompletionTimeout)

	r := httpapi.NewRouter(httpapi.Deps{
		ChatSvc:        svc,
		Cookies:        session.NewCookies(session.DefaultCookieName, cfg.SessionSecret, cfg.SessionTTL),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	go runJanitor(ctx, cfg.JanitorInterval, uploads, mem)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("server listening on %s provider=%s", cfg.HTTPAddr, cfg.AIProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// runJanitor removes expired uploads and, for the in-memory store, expired
// sessions until ctx is done.
func runJanitor(ctx context.Context, every time.Duration, uploads *upload.Store, mem *session.MemoryStore) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n, err := uploads.SweepExpired(ctx, now); err != nil {
				logger.Warnf("upload sweep failed: %v", err)
			} else if n > 0 {
				logger.Infof("upload sweep removed=%d", n)
			}
			if mem != nil {
				if n := mem.Sweep(now); n > 0 {
					logger.Debugf("session sweep removed=%d", n)
				}
			}
		}
	}
}
