package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bryanwahyu/assessment-hub/internal/application"
	appassess "github.com/bryanwahyu/assessment-hub/internal/application/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/catalog"
	"github.com/bryanwahyu/assessment-hub/internal/config"
	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/ai/classifier"
	"github.com/bryanwahyu/assessment-hub/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/assessment-hub/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/assessment-hub/internal/infra/db/postgres"
	"github.com/bryanwahyu/assessment-hub/internal/infra/httpserver"
	"github.com/bryanwahyu/assessment-hub/internal/infra/render"
	"github.com/bryanwahyu/assessment-hub/internal/infra/session"
	minioStore "github.com/bryanwahyu/assessment-hub/internal/infra/storage"
	"github.com/bryanwahyu/assessment-hub/internal/logger"
	"github.com/bryanwahyu/assessment-hub/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	ctx := context.Background()

	reg, err := loadCatalog(cfg.Catalog.Dir)
	if err != nil {
		log.Fatal("catalog load error", zap.Error(err))
	}
	log.Info("catalog loaded", zap.Int("tools", len(reg.List())))

	// sessions live in redis
	rdb, err := session.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("redis connect error", zap.Error(err))
	}
	defer rdb.Close()
	sessions := session.NewRedisStore(rdb, cfg.Redis.SessionTTL)

	checkers := map[string]middleware.HealthChecker{"redis": sessions}

	svc := &appassess.Service{
		Catalog:  reg,
		Sessions: sessions,
		Chat: openai.NewClient(openai.Options{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}),
		Inference:     classifier.NewClient(targets(cfg), cfg.Inference.Timeout),
		Renderer:      render.New(),
		Observe:       middleware.ObserveAssessment,
		Clock:         application.SystemClock{},
		Log:           log,
		PresignExpiry: cfg.Minio.PresignExpiry,
		CallTimeout:   cfg.Server.WriteTimeout,
	}
	if cfg.LLM.APIKey == "" {
		log.Warn("LLM_API_KEY is not set; chat tools will report missing configuration")
	}

	// run ledger (optional)
	db, runs, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal("database connect error", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		svc.Runs = runs
		checkers["database"] = runs
	} else {
		log.Info("run ledger disabled")
	}

	// report archive (optional)
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx, minioStore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			log.Fatal("minio init error", zap.Error(err))
		}
		svc.Archiver = store
		checkers["minio"] = store
	} else {
		log.Info("report archive disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer limiter.Stop()

	handler := httpserver.NewRouter(httpserver.Options{
		Service:        svc,
		Log:            log,
		Checkers:       checkers,
		AdminKeys:      cfg.Admin.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Limiter:        limiter,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	srv := httpserver.Server(cfg.Addr(), handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func loadCatalog(dir string) (*catalog.Registry, error) {
	if dir != "" {
		return catalog.LoadDir(dir)
	}
	return catalog.Default()
}

func targets(cfg *config.Config) map[string]classifier.Target {
	out := make(map[string]classifier.Target, len(cfg.Inference.Endpoints))
	for name, ep := range cfg.Inference.Endpoints {
		out[name] = classifier.Target{URL: ep.URL, APIKey: ep.APIKey, RequireKey: ep.RequireKey}
	}
	return out
}

type ledger interface {
	assessment.RunRepository
	middleware.HealthChecker
}

func openLedger(ctx context.Context, cfg *config.Config) (*sql.DB, ledger, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, mysqlp.NewRunRepository(db), nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := pgp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, pgp.NewRunRepository(db), nil
	}
	return nil, nil, nil
}
