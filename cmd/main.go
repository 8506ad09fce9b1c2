package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elobot/ladder-system/config"
	"github.com/elobot/ladder-system/db"
	"github.com/elobot/ladder-system/handlers"
	"github.com/elobot/ladder-system/realtime"
	"github.com/elobot/ladder-system/repositories"
	api "github.com/elobot/ladder-system/routes"
	"github.com/elobot/ladder-system/services"
	"github.com/elobot/ladder-system/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.InitSchema(context.Background(), dbConn); err != nil {
		logger.Error("failed to initialize database schema", slog.Any("error", err))
		os.Exit(1)
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub()
	go wsHub.Run()
	notifier := realtime.NewHubNotifier(wsHub)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	moderatorRepo := repositories.NewPostgresModeratorRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	authService := services.NewAuthService(moderatorRepo, cfg.JWTSecretKey)
	playerService := services.NewPlayerService(dbConn, playerRepo, matchRepo, logger)
	evidenceService := services.NewEvidenceService(cloudflareUploader)
	draftService := services.NewDraftCoordinator(matchRepo, notifier, logger, cfg.DraftTurnTimeout)
	queueService := services.NewQueueService(playerRepo, matchRepo, draftService, notifier, logger)
	resultService := services.NewResultService(playerRepo, matchRepo, notifier, logger, cfg.ConfirmationWindow)
	sweeperService := services.NewSweeperService(playerRepo, matchRepo, draftService, notifier, logger, cfg.MatchExpiry)
	tournamentService := services.NewTournamentService(tournamentRepo, matchRepo, draftService, notifier, logger)

	// Верифицированный турнирный матч двигает сетку.
	resultService.SetVerifiedHook(tournamentService.OnMatchVerified)
	tournamentService.SetResultInvalidator(resultService.DropPending)
	logger.Info("Services initialized")

	// Восстановление состояния после рестарта: очереди и ожидания
	// подтверждения живут в памяти, сетки — в базе.
	startupCtx := context.Background()
	if err := playerService.ClearQueueFlags(startupCtx); err != nil {
		logger.Error("recovery: failed to clear queue flags", slog.Any("error", err))
		os.Exit(1)
	}
	if err := resultService.RecoverInFlight(startupCtx); err != nil {
		logger.Error("recovery: failed to reopen in-flight results", slog.Any("error", err))
		os.Exit(1)
	}
	if err := tournamentService.Recover(startupCtx); err != nil {
		logger.Error("recovery: failed to reload bracket states", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("startup recovery complete")

	// Периодические задачи: подбор пар, закрытие протухших матчей,
	// проверка завершения раундов.
	go runTicker(logger, "pairing", cfg.PairingInterval, func(ctx context.Context) error {
		matches, err := queueService.RunPairingPass(ctx)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			logger.Info("pairing pass created matches", slog.Int("count", len(matches)))
		}
		return nil
	})
	go runTicker(logger, "sweep", cfg.SweepInterval, func(ctx context.Context) error {
		closed, err := sweeperService.Sweep(ctx)
		if err != nil {
			return err
		}
		if closed > 0 {
			logger.Info("sweeper closed expired matches", slog.Int("count", closed))
		}
		return nil
	})
	go runTicker(logger, "bracket-check", cfg.BracketCheckInterval, tournamentService.CheckRoundCompletion)

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService)
	playerHandler := handlers.NewPlayerHandler(playerService)
	queueHandler := handlers.NewQueueHandler(queueService)
	matchHandler := handlers.NewMatchHandler(resultService, draftService, evidenceService)
	moderatorHandler := handlers.NewModeratorHandler(resultService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		playerHandler,
		queueHandler,
		matchHandler,
		moderatorHandler,
		tournamentHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}

// runTicker запускает периодическую задачу и логирует её сбои, не
// останавливая процесс.
func runTicker(logger *slog.Logger, name string, interval time.Duration, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("periodic task started", slog.String("task", name), slog.Duration("interval", interval))

	for range ticker.C {
		if err := task(context.Background()); err != nil {
			logger.Error("periodic task failed", slog.String("task", name), slog.Any("error", err))
		}
	}
}
