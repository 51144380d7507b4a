package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
	"github.com/jmerrifield20/blocklog/internal/identity"
	"github.com/jmerrifield20/blocklog/internal/miner"
	"github.com/jmerrifield20/blocklog/internal/node/handler"
	"github.com/jmerrifield20/blocklog/internal/webhooks"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("blocklogd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("blocklogd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("node.port", 8080)
	viper.SetDefault("node.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("node.rate_limit_rps", 20)
	viper.SetDefault("node.write_secret", "")
	viper.SetDefault("node.token_ttl", "24h")
	viper.SetDefault("chain.difficulty", blockchain.DefaultDifficulty)
	viper.SetDefault("chain.genesis_proof", blockchain.DefaultGenesisProof)
	viper.SetDefault("chain.genesis_previous_hash", blockchain.DefaultGenesisPreviousHash)
	viper.SetDefault("mining.timeout", "2m")
	viper.SetDefault("mining.interval", "0s")
	viper.SetDefault("webhooks.secret", "")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Webhooks ──────────────────────────────────────────────────────────────
	var subs []webhooks.Subscription
	if err := viper.UnmarshalKey("webhooks.subscriptions", &subs); err != nil {
		return fmt.Errorf("parse webhooks.subscriptions: %w", err)
	}
	opts := []blockchain.Option{
		blockchain.WithConfig(blockchain.Config{
			Difficulty:          viper.GetInt("chain.difficulty"),
			GenesisPreviousHash: viper.GetString("chain.genesis_previous_hash"),
		}),
		blockchain.WithGenesisProof(viper.GetInt64("chain.genesis_proof")),
		blockchain.WithObserver(blockchain.NewLogObserver(logger)),
		blockchain.WithObserver(handler.MetricsObserver()),
	}
	var webhookSvc *webhooks.Service
	if len(subs) > 0 {
		webhookSvc = webhooks.NewService(subs, viper.GetString("webhooks.secret"), logger)
		webhookSvc.SetMetricsRecorder(handler.RecordWebhookDelivery)
		opts = append(opts, blockchain.WithObserver(webhookSvc.Observer()))
		logger.Info("webhook subscriptions loaded", zap.Int("count", len(subs)))
	}

	// ── Chain ─────────────────────────────────────────────────────────────────
	engine := blockchain.New(opts...)

	if err := engine.Validate(); err != nil {
		logger.Warn("chain integrity check FAILED", zap.Error(err))
	} else {
		logger.Info("chain ready",
			zap.Int("blocks", engine.Len()),
			zap.String("root", engine.Root()),
			zap.Int("difficulty", engine.ProofOfWork().Difficulty()),
		)
	}

	// ── Writer tokens ─────────────────────────────────────────────────────────
	var tokens *identity.TokenIssuer
	if secret := viper.GetString("node.write_secret"); secret != "" {
		var err error
		tokens, err = identity.NewTokenIssuer(secret, viper.GetDuration("node.token_ttl"))
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}
		logger.Info("writer tokens required for mutating endpoints")
	} else {
		logger.Warn("node.write_secret is empty, write endpoints are open")
	}

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	mineTimeout := viper.GetDuration("mining.timeout")
	chainHandler := handler.NewChainHandler(engine, tokens, mineTimeout, logger)
	router := newRouter(bgCtx, chainHandler, viper.GetStringSlice("node.cors_origins"), viper.GetInt("node.rate_limit_rps"), logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// ── Background miner ──────────────────────────────────────────────────────
	stopMiner := make(chan struct{})
	if interval := viper.GetDuration("mining.interval"); interval > 0 {
		m := miner.New(engine, miner.Config{Interval: interval, Timeout: mineTimeout}, logger)
		go m.Start(stopMiner)
		logger.Info("background miner enabled", zap.Duration("interval", interval))
	}

	httpPort := viper.GetInt("node.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("blocklogd HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down blocklogd...")
	close(stopMiner)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if webhookSvc != nil {
		webhookSvc.Wait()
	}

	logger.Info("blocklogd stopped",
		zap.Int("blocks", engine.Len()),
		zap.Int("pending", len(engine.Pending())),
	)
	return nil
}

// newRouter assembles the middleware stack and mounts the API.
func newRouter(ctx context.Context, chainHandler *handler.ChainHandler, corsOrigins []string, rps int, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	// Per-IP rate limiting
	router.Use(handler.RateLimiter(ctx, rps, rps*2))

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	chainHandler.Register(v1)

	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that tags each request with an
// X-Request-ID and logs it with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		c.Next()
		logger.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
