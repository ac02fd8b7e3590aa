package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/casdoc/casdoc/internal/accounts"
	"github.com/casdoc/casdoc/internal/archive"
	"github.com/casdoc/casdoc/internal/config"
	"github.com/casdoc/casdoc/internal/database"
	"github.com/casdoc/casdoc/internal/httpapi"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/pkg/logger"
	"github.com/casdoc/casdoc/pkg/metrics"
	"github.com/casdoc/casdoc/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	logger.Infof("config loaded: backend=%s environment=%s", cfg.Store.Backend, cfg.Server.Environment)

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	raw, cleanup, err := buildStore(cfg)
	if err != nil {
		logger.Fatalf("failed to build %q store: %v", cfg.Store.Backend, err)
	}
	defer cleanup()
	var st store.Store = store.Instrument(raw, cfg.Store.Backend)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis {
			client := redisClient(cfg)
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(client, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		// the store is the only critical dependency; probe it with a
		// key that never exists
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		_, _, err := st.Get(ctx, "readiness-probe")
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "uptime": time.Since(startTime).String()})
	})

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	var arch *archive.Archiver
	if cfg.Archive.Enabled {
		arch, err = archive.New(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			logger.Warnf("archive disabled: %v", err)
			arch = nil
		}
	}

	api := r.Group("/")
	if cfg.Auth.Enabled {
		if cfg.Auth.JWTSecret == "" {
			logger.Fatalf("AUTH_ENABLED requires JWT_SECRET")
		}
		api.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	}

	httpapi.NewHandler(st, arch).Register(api)

	accountSvc, err := accounts.NewService(st)
	if err != nil {
		logger.Fatalf("failed to build account service: %v", err)
	}
	accounts.RegisterRoutes(api, accountSvc)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infof("casdocd listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server: %v", err)
	}
}

func redisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// buildStore constructs the configured store backend and a cleanup func.
func buildStore(cfg *config.Config) (store.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemory(), noop, nil
	case "redis":
		client := redisClient(cfg)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, noop, err
		}
		return store.NewRedis(client, cfg.Redis.Prefix), func() { _ = client.Close() }, nil
	case "mongo":
		ctx := context.Background()
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, noop, err
		}
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		st, err := store.NewMongo(ctx, col)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, noop, err
		}
		return st, func() { _ = client.Disconnect(context.Background()) }, nil
	case "badger":
		st, err := store.NewBadger(cfg.Badger.Path)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, noop, errors.Newf("unknown store backend %q", cfg.Store.Backend)
	}
}
