package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/messaging"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/progress"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
	"github.com/felixgeelhaar/smartreviewer/pkg/storage"
)

// Workspace bundles the persistence and notification side of a run.
type Workspace struct {
	Files       *storage.FilesystemRepository
	Results     domain.ResultRepository
	History     *storage.FileHistory
	Events      *events.Dispatcher
	Notifier    *webhook.Notifier
	DeadLetters *webhook.DeadLetterStore
	Progress    *progress.Hub
}

// NewWorkspace initialises .smartreviewer under root and connects the
// configured result store. History records every lifecycle event except
// per-item progress; webhooks and chat adapters receive what their
// filters select.
func NewWorkspace(ctx context.Context, root string, cfg *config.ReviewConfig, logger *slog.Logger) (*Workspace, error) {
	if cfg == nil {
		cfg = &config.ReviewConfig{}
	}
	files := storage.NewFilesystemRepository(root)
	if err := files.Initialize(); err != nil {
		return nil, err
	}

	results, err := buildResultRepository(ctx, files, cfg.Store)
	if err != nil {
		return nil, err
	}

	history, err := storage.NewFileHistory(files.Dir())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	dispatcher := events.NewDispatcher()
	dispatcher.ContinueOnError = true
	dispatcher.Register("history", history.Handle,
		events.ReviewStarted,
		events.ReviewCompleted,
		events.ReviewPartialFailure,
		events.EvaluationCompleted,
		events.EvaluationRegressed,
		events.ResultPublished,
	)

	dlStore := webhook.NewDeadLetterStore(filepath.Join(files.Dir(), storage.DeadLetterFile))
	notifier := webhook.NewNotifier(cfg.Webhooks, dlStore, logger)
	if len(cfg.Webhooks) > 0 {
		dispatcher.Register("webhook", notifier.Handle, events.Wildcard)
	}

	hub := progress.NewHub(logger)
	dispatcher.Register("progress", hub.Handle, events.ReviewProgressed, events.ReviewCompleted, events.ReviewPartialFailure)

	chat, err := messaging.NewRegistry(cfg.Messaging)
	if err != nil {
		return nil, err
	}
	if len(chat.Adapters()) > 0 {
		dispatcher.Register("messaging", chat.Handle, events.Wildcard)
	}

	return &Workspace{
		Files:       files,
		Results:     results,
		History:     history,
		Events:      dispatcher,
		Notifier:    notifier,
		DeadLetters: dlStore,
		Progress:    hub,
	}, nil
}

func buildResultRepository(ctx context.Context, files *storage.FilesystemRepository, cfg config.StoreConfig) (domain.ResultRepository, error) {
	switch cfg.Backend {
	case "", config.StoreFilesystem:
		return files, nil
	case config.StoreS3:
		client := storage.ConnectS3(storage.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
		})
		repo := storage.NewS3Repository(client, cfg.Bucket)
		if err := repo.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
