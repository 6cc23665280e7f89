package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/cruzzer/bazaar-api/internal/config"
	"github.com/cruzzer/bazaar-api/internal/handlers"
	"github.com/cruzzer/bazaar-api/internal/registry"
	"github.com/cruzzer/bazaar-api/internal/services"
	"github.com/cruzzer/bazaar-api/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := store.NewDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := store.NewRegistryRepository(db)
	if err := repo.EnsureSchema(); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	snap, err := repo.LoadSnapshot()
	if err != nil {
		logger.Fatal("failed to load registry snapshot", zap.Error(err))
	}

	reg := registry.New()
	reg.Restore(snap)
	logger.Info("registry restored",
		zap.Int("assets", len(snap.Assets)),
		zap.Int64("next_id", snap.NextID))

	hub := handlers.NewHub(logger)
	go hub.Run()

	walletService := services.NewWalletService()
	authService := services.NewAuthService(walletService, cfg.Auth)
	registryService := services.NewRegistryService(reg, repo, hub, logger)

	router := newRouter(registryService, authService, hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newRouter(registryService *services.RegistryService, authService *services.AuthService, hub *handlers.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/challenge", handlers.WalletChallenge(authService))
		r.Post("/auth/login", handlers.WalletLogin(authService))

		r.Get("/assets", handlers.GetAssets(registryService))
		r.Get("/assets/{id}", handlers.GetAsset(registryService))
		r.Get("/balances/{address}", handlers.GetBalance(registryService))

		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(authService))
			r.Post("/assets", handlers.MintAsset(registryService))
			r.Post("/assets/{id}/list", handlers.ListAsset(registryService))
			r.Post("/assets/{id}/delist", handlers.DelistAsset(registryService))
			r.Post("/assets/{id}/buy", handlers.BuyAsset(registryService))
		})
	})

	r.Get("/ws", handlers.ServeWs(hub))

	return r
}
