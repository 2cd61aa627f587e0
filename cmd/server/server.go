package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"assistant-api/internal/config"
	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/model"
	"assistant-api/internal/domain/processor"
	"assistant-api/internal/domain/processor/anthropic"
	"assistant-api/internal/domain/processor/gemini"
	"assistant-api/internal/domain/processor/openai"
	"assistant-api/internal/infrastructure/database"
	"assistant-api/internal/infrastructure/logger"
	"assistant-api/internal/infrastructure/mcpclient"
	"assistant-api/internal/infrastructure/oauthflow"
	"assistant-api/internal/infrastructure/observability"
	"assistant-api/internal/infrastructure/providers/anthropicapi"
	"assistant-api/internal/infrastructure/providers/geminiapi"
	"assistant-api/internal/infrastructure/providers/openaiapi"
	"assistant-api/internal/infrastructure/repository/aimodel"
	"assistant-api/internal/infrastructure/repository/fileupload"
	"assistant-api/internal/infrastructure/repository/threadrepo"
	"assistant-api/internal/infrastructure/repository/token"
	"assistant-api/internal/infrastructure/repository/toolserver"
	"assistant-api/internal/interfaces/httpserver"
	"assistant-api/internal/interfaces/httpserver/handlers"
	"assistant-api/internal/worker"
)

// Application bundles the long-running pieces of the service.
type Application struct {
	httpServer *httpserver.HTTPServer
	cleanup    *worker.CleanupRunner
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HTTPServer, cleanup *worker.CleanupRunner, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		cleanup:    cleanup,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	a.cleanup.Start(ctx)
	defer a.cleanup.Stop()
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	// Repositories
	threadRepository := threadrepo.NewRepository(db)
	uploadRepository := fileupload.NewRepository(db)
	tokenRepository := token.NewRepository(db)
	serverRepository := toolserver.NewRepository(db)
	modelRepository := aimodel.NewRepository(db)

	// MCP authorization
	flow := oauthflow.NewFlow(tokenRepository, serverRepository, cfg.OAuthRedirectURL(), log)
	gate := mcpauth.NewGate(flow, log)

	// File attachments
	fileStore := openaiapi.NewFileStore(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	attachmentService := attachment.NewService(fileStore, threadRepository, uploadRepository, attachment.Config{
		MaxFileSizeMB:       cfg.MaxFileSizeMB,
		MaxFilesPerThread:   cfg.MaxFilesPerThread,
		StoreExpirationDays: cfg.StoreExpirationDays,
		ProcessingTimeout:   cfg.FileWaitTimeout,
	}, log)
	cleanupService := attachment.NewCleanupService(attachmentService, fileStore, threadRepository, uploadRepository, log)

	// Model registry
	sessionFactory := mcpclient.NewFactory(cfg.MCPConnectTimeout, log)
	registry := model.NewRegistry(log)
	if err := registry.Load(ctx, modelRepository, processorBuilders(cfg, gate, flow, sessionFactory, log)); err != nil {
		log.Fatal().Err(err).Msg("load model registry")
	}

	cleanupRunner := worker.NewCleanupRunner(cleanupService, cfg.CleanupInterval, log)

	handlerProvider := handlers.NewProvider(registry, threadRepository, serverRepository, attachmentService, flow, log)
	httpServer := httpserver.New(cfg, log, handlerProvider)
	app := NewApplication(httpServer, cleanupRunner, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

// processorBuilders maps each provider name to a constructor closure
// consulted by the model registry.
func processorBuilders(
	cfg *config.Config,
	gate *mcpauth.Gate,
	urls mcpauth.AuthURLBuilder,
	sessions gemini.SessionFactory,
	log zerolog.Logger,
) map[string]model.Builder {
	baseURL := func(m model.Model, fallback string) string {
		if m.BaseURL != "" {
			return m.BaseURL
		}
		return fallback
	}

	return map[string]model.Builder{
		"openai": func(m model.Model) (processor.Processor, error) {
			api := openaiapi.NewClient(baseURL(m, cfg.OpenAIBaseURL), m.APIKey)
			return openai.New(api, gate, urls, []string{m.ModelID}, log, openai.WithWebSearch()), nil
		},
		"anthropic": func(m model.Model) (processor.Processor, error) {
			api := anthropicapi.NewClient(baseURL(m, cfg.AnthropicBaseURL), m.APIKey)
			return anthropic.New(api, gate, urls, []string{m.ModelID}, log), nil
		},
		"gemini": func(m model.Model) (processor.Processor, error) {
			api := geminiapi.NewClient(baseURL(m, cfg.GeminiBaseURL), m.APIKey)
			return gemini.New(api, sessions, gate, urls, []string{m.ModelID}, log), nil
		},
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
