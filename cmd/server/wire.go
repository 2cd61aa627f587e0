//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"assistant-api/internal/config"
	"assistant-api/internal/domain/attachment"
	"assistant-api/internal/domain/mcpauth"
	"assistant-api/internal/domain/model"
	"assistant-api/internal/infrastructure/database"
	"assistant-api/internal/infrastructure/logger"
	"assistant-api/internal/infrastructure/mcpclient"
	"assistant-api/internal/infrastructure/oauthflow"
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

var repositorySet = wire.NewSet(
	threadrepo.NewRepository,
	fileupload.NewRepository,
	token.NewRepository,
	toolserver.NewRepository,
	aimodel.NewRepository,
	wire.Bind(new(attachment.Threads), new(*threadrepo.Repository)),
	wire.Bind(new(attachment.Uploads), new(*fileupload.Repository)),
	wire.Bind(new(oauthflow.Tokens), new(*token.Repository)),
	wire.Bind(new(oauthflow.Servers), new(*toolserver.Repository)),
	wire.Bind(new(model.Store), new(*aimodel.Repository)),
)

var authSet = wire.NewSet(
	newOAuthFlow,
	wire.Bind(new(mcpauth.TokenSource), new(*oauthflow.Flow)),
	wire.Bind(new(mcpauth.AuthURLBuilder), new(*oauthflow.Flow)),
	newAuthGate,
)

var attachmentSet = wire.NewSet(
	newFileStore,
	wire.Bind(new(attachment.FileStore), new(*openaiapi.FileStore)),
	newAttachmentService,
	attachment.NewCleanupService,
)

// BuildApplication demonstrates how to assemble the service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		repositorySet,
		authSet,
		attachmentSet,
		newSessionFactory,
		newModelRegistry,
		newCleanupRunner,
		handlers.NewProvider,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newOAuthFlow(tokens oauthflow.Tokens, servers oauthflow.Servers, cfg *config.Config, log zerolog.Logger) *oauthflow.Flow {
	return oauthflow.NewFlow(tokens, servers, cfg.OAuthRedirectURL(), log)
}

func newAuthGate(tokens mcpauth.TokenSource, log zerolog.Logger) *mcpauth.Gate {
	return mcpauth.NewGate(tokens, log)
}

func newFileStore(cfg *config.Config) *openaiapi.FileStore {
	return openaiapi.NewFileStore(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
}

func newAttachmentService(store attachment.FileStore, threads attachment.Threads, uploads attachment.Uploads, cfg *config.Config, log zerolog.Logger) *attachment.Service {
	return attachment.NewService(store, threads, uploads, attachment.Config{
		MaxFileSizeMB:       cfg.MaxFileSizeMB,
		MaxFilesPerThread:   cfg.MaxFilesPerThread,
		StoreExpirationDays: cfg.StoreExpirationDays,
		ProcessingTimeout:   cfg.FileWaitTimeout,
	}, log)
}

func newCleanupRunner(cleanup *attachment.CleanupService, cfg *config.Config, log zerolog.Logger) *worker.CleanupRunner {
	return worker.NewCleanupRunner(cleanup, cfg.CleanupInterval, log)
}

func newSessionFactory(cfg *config.Config, log zerolog.Logger) *mcpclient.Factory {
	return mcpclient.NewFactory(cfg.MCPConnectTimeout, log)
}

func newModelRegistry(ctx context.Context, cfg *config.Config, store model.Store, gate *mcpauth.Gate, urls mcpauth.AuthURLBuilder, sessions *mcpclient.Factory, log zerolog.Logger) (*model.Registry, error) {
	registry := model.NewRegistry(log)
	if err := registry.Load(ctx, store, processorBuilders(cfg, gate, urls, sessions, log)); err != nil {
		return nil, err
	}
	return registry, nil
}
