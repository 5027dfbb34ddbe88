package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cleanup/internal/account"
	"cleanup/internal/auth"
	"cleanup/internal/background"
	"cleanup/internal/bootstrap"
	"cleanup/internal/config"
	"cleanup/internal/database"
	"cleanup/internal/handlers"
	middlewareCustom "cleanup/internal/middleware"
	"cleanup/internal/repositories"
	"cleanup/internal/routes"
	"cleanup/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.RunMigrations(migrateCtx, db.Pool); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	userRepo := repositories.NewUserRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)

	guard, err := account.NewGuard(cfg.Account.EmailPattern, cfg.Account.UsernamePattern)
	if err != nil {
		logger.Error("failed to compile identity patterns", slog.Any("error", err))
		os.Exit(1)
	}

	emailService, err := services.NewAWSSESEmailService(cfg.Mail.AWSRegion, cfg.Mail.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	mailer := background.NewMailer(emailService, logger, cfg.Mail.QueueSize)
	mailerCtx, mailerCancel := context.WithCancel(context.Background())
	defer mailerCancel()
	go mailer.Start(mailerCtx)

	mailService := services.NewMailService(templateRepo, mailer, cfg.Mail.BaseURL, cfg.Mail.FromAddress, logger)
	userService := services.NewUserService(userRepo, guard, mailService, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrap.Seed(seedCtx, userRepo, templateRepo, cfg.Account, logger); err != nil {
		seedCancel()
		logger.Error("failed to seed database", slog.Any("error", err))
		os.Exit(1)
	}
	seedCancel()

	userHandler := handlers.NewUserHandler(userService, tokenManager)
	adminHandler := handlers.NewAdminHandler(userService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, userHandler, adminHandler, tokenManager, userRepo)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	mailerCancel()
	mailer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
