package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/api"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/cache"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/config"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/database"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/ebay"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/health"
	"github.com/Tylersfritz/EbayBuyerTool-sub001/internal/prices"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	env := ebay.Environment(cfg.Ebay.Environment)
	httpClient := &http.Client{Timeout: cfg.Ebay.HTTPTimeout}

	tokens := ebay.NewTokenManager(cfg.Ebay.ClientID, cfg.Ebay.ClientSecret, logger,
		ebay.WithHTTPClient(httpClient))
	browse := ebay.NewBrowseClient(tokens, env, logger,
		ebay.WithBrowseHTTPClient(httpClient))

	respCache := cache.NewResponseCache(redisClient, cfg.Ebay.PriceCheckTTL, logger)
	checkStore := database.NewPriceCheckRepository(db)
	priceService := prices.NewService(browse, checkStore, respCache, logger)

	checker := health.NewChecker(cfg.Ebay.ClientID, cfg.Ebay.ClientSecret, env, tokens, browse, logger)

	handlers := api.NewHandlers(checker, priceService, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// The health endpoint sets its own CORS headers; the handler owns
	// method gating so non-GET verbs get the structured 405 body.
	r.Handle("/health", http.HandlerFunc(handlers.Health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Post("/price-check", handlers.CheckPrice)
		r.Get("/price-check/history", handlers.PriceHistory)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port, "ebay_environment", cfg.Ebay.Environment)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
