package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/expenseworks/expense-management/internal/chat"
	"github.com/expenseworks/expense-management/internal/config"
	"github.com/expenseworks/expense-management/internal/export"
	httpapi "github.com/expenseworks/expense-management/internal/interfaces/http"
	"github.com/expenseworks/expense-management/internal/store"
	"github.com/expenseworks/expense-management/pkg/database"
	"github.com/expenseworks/expense-management/pkg/utils"
)

func main() {
	// Load local environment overrides before configuration
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Expense Management Service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll("data", 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	expenseStore := store.NewExpenseStore(db.DB, logger)
	sessionRepo := chat.NewSessionRepository(db.DB, logger)

	// A missing API key leaves the assistant unconfigured but the service up.
	var completionClient chat.CompletionClient
	if cfg.OpenAI.APIKey != "" {
		completionClient = openai.NewClient(cfg.OpenAI.APIKey)
	}

	chatService := chat.NewService(completionClient, expenseStore, sessionRepo, chat.Config{
		Model:             cfg.OpenAI.Model,
		Temperature:       cfg.OpenAI.Temperature,
		MaxToolRounds:     cfg.Chat.MaxToolRounds,
		DefaultUserID:     cfg.Chat.DefaultUserID,
		DefaultReviewerID: cfg.Chat.DefaultReviewerID,
	}, logger)

	reportWriter := export.NewReportWriter(logger)

	handlers := httpapi.NewHandlers(
		expenseStore,
		chatService,
		reportWriter,
		cfg.Chat.DefaultUserID,
		cfg.Chat.DefaultReviewerID,
		logger,
	)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
