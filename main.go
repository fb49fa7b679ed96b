package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/designpress/go-services/handlers"
	"github.com/designpress/go-services/internal/config"
	"github.com/designpress/go-services/internal/render"
	"github.com/designpress/go-services/internal/storage"
	"github.com/designpress/go-services/internal/webflow"
	"github.com/designpress/go-services/pkg/logger"
	"github.com/designpress/go-services/pkg/metrics"
	"github.com/designpress/go-services/pkg/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: webflow=%t archive=%t redis=%t",
		cfg.Webflow.Validate() == nil, cfg.Archive.Enabled(), cfg.Redis.Host != "")

	r := gin.New()

	// Simple CORS so the hosted form can post cross-origin. Lock down the
	// origin list when fronting this with a stricter proxy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.RequestID())

	// Redis is only used by the distributed rate limiter; the service runs
	// fine without it.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	cms := webflow.NewClient(cfg.Webflow.BaseURL, cfg.Webflow.APIToken)
	renderer := render.NewChrome(render.Options{
		Timeout:   cfg.Render.Timeout,
		MarginPx:  cfg.Render.MarginPx,
		RemoteURL: cfg.Render.RemoteURL,
		NoSandbox: cfg.Render.NoSandbox,
	})

	var archive handlers.Archiver
	archiveReady := false
	if cfg.Archive.Enabled() {
		a, err := storage.NewArchive(cfg.Archive)
		if err != nil {
			logger.Warnf("PDF archive unavailable, continuing without it: %v", err)
		} else {
			archive = a
			archiveReady = true
			logger.Infof("archiving rendered PDFs to bucket %q at %s", cfg.Archive.Bucket, cfg.Archive.Endpoint)
		}
	}

	h := handlers.NewSubmissionHandler(cfg, cms, renderer, archive)
	h.Register(r)
	handlers.RegisterOps(r, cfg, archiveReady)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := cfg.Webflow.Validate(); err != nil {
		logger.Warnf("starting without complete Webflow configuration: %v", err)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting submission service on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
