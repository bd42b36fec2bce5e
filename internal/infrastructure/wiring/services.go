package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/pkg/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/application"
	domainai "github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// AppServices exposes the application layer wired to a workspace.
type AppServices struct {
	Root      string
	Config    *config.ReviewConfig
	Catalogue *review.Catalogue
	Workspace *Workspace
	Provider  domainai.Provider
	Backend   retrieval.Backend
	Engine    *application.Engine
	Reviews   *application.ReviewService
	Logger    *slog.Logger

	closers []func() error
}

// Overrides replaces parts of the configured stack, mostly for tests and
// embedding.
type Overrides struct {
	Provider domainai.Provider
	Backend  retrieval.Backend
}

// BuildAppServices wires everything from .smartreviewer/ under root.
func BuildAppServices(ctx context.Context, root string, logger *slog.Logger) (*AppServices, error) {
	return BuildAppServicesWith(ctx, root, logger, Overrides{})
}

func BuildAppServicesWith(ctx context.Context, root string, logger *slog.Logger, ov Overrides) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.LoadReviewConfig(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.ReviewConfig{}
	}
	catalogue, err := config.LoadCatalogue(root)
	if err != nil {
		return nil, err
	}

	provider := ov.Provider
	if provider == nil {
		provider, err = BuildProvider(cfg)
		if err != nil {
			logger.Warn("AI provider config fallback", "error", err)
			fallback, fallbackErr := ai.GetDefaultProvider("ollama", "llama3")
			if fallbackErr != nil {
				return nil, fmt.Errorf("fallback AI provider failed: %w", fallbackErr)
			}
			provider = ai.NewResilientProvider(fallback)
		}
	}

	s := &AppServices{Root: root, Config: cfg, Catalogue: catalogue, Provider: provider, Logger: logger}

	backend := ov.Backend
	if backend == nil {
		var closers []func() error
		backend, closers, err = BuildBackend(ctx, root, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closers...)
	}
	s.Backend = backend

	ws, err := NewWorkspace(ctx, root, cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Workspace = ws
	s.closers = append(s.closers, func() error { ws.Notifier.Wait(); return nil })

	applicability, err := application.NewApplicability()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	orchestrator := application.NewOrchestrator(application.AdaptersFromBackend(backend), cfg.RetrievalSettings(), logger)
	s.Engine = application.NewEngine(orchestrator, application.NewLLMJudge(provider), logger,
		application.WithApplicability(applicability))
	s.Reviews = application.NewReviewService(s.Engine, catalogue, ws.Results, ws.Events, logger)
	return s, nil
}

// ReviewOptions returns the configured per-run policy.
func (s *AppServices) ReviewOptions() application.ReviewOptions {
	return s.Config.ReviewOptions()
}

// EvalOptions returns the configured evaluation policy.
func (s *AppServices) EvalOptions() application.EvalOptions {
	return s.Config.EvalOptions()
}

// Close releases backends in reverse order and waits for pending webhook
// deliveries.
func (s *AppServices) Close() error {
	err := closeAll(s.closers)
	s.closers = nil
	return err
}
