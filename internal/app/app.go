package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/ai"
	"github.com/khrees2412/applyflow/internal/applicator"
	"github.com/khrees2412/applyflow/internal/config"
	"github.com/khrees2412/applyflow/internal/database"
	"github.com/khrees2412/applyflow/internal/ingest"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/internal/matcher"
	"github.com/khrees2412/applyflow/internal/notify"
	"github.com/khrees2412/applyflow/internal/pipeline"
	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/internal/render"
	"github.com/khrees2412/applyflow/internal/tailor"
	"github.com/khrees2412/applyflow/pkg/models"
)

// App is the dependency container for the CLI application
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *database.Store
	Activity  *activity.Log
	Gateway   ai.Gateway
	Matcher   *matcher.Matcher
	Tailor    *tailor.Tailor
	Limiter   *ratelimit.Limiter
	Backend   applicator.Backend
	Renderer  *render.Markdown
	Automator *pipeline.Automator
}

// NewApp loads the configuration in dir and wires every component
func NewApp(ctx context.Context, dir string) (*App, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return build(ctx, cfg, nil)
}

// build wires the components for cfg. A nil backend selects the configured browser backend.
func build(ctx context.Context, cfg *config.Config, backend applicator.Backend) (*App, error) {
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := database.Open(cfg.DatabasePath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   log,
		Store:    store,
		Activity: activity.New(activity.WithLogger(log), activity.WithSink(store)),
	}

	if !cfg.Simulation {
		if a.Gateway, err = newGateway(ctx, cfg.Gateway, log); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Matcher = matcher.New(a.Gateway,
		matcher.WithSimulation(cfg.Simulation),
		matcher.WithTimeout(cfg.Gateway.Timeout),
		matcher.WithActivityLog(a.Activity),
		matcher.WithLogger(log.Named("matcher")))
	a.Tailor = tailor.New(a.Gateway,
		tailor.WithSimulation(cfg.Simulation),
		tailor.WithTimeout(cfg.Gateway.Timeout),
		tailor.WithActivityLog(a.Activity),
		tailor.WithLogger(log.Named("tailor")))

	a.Limiter = ratelimit.New(ratelimit.Config{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
		Mode:   ratelimit.Mode(cfg.RateLimit.Mode),
	})
	if err := a.restorePrefills(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if backend == nil {
		backend = newBackend(cfg.Automation, log.Named("automation"))
	}
	a.Backend = backend

	if a.Renderer, err = render.NewMarkdown(cfg.ResumeDir()); err != nil {
		a.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Matcher:  a.Matcher,
		Tailor:   a.Tailor,
		Backend:  a.Backend,
		Limiter:  a.Limiter,
		Activity: a.Activity,
		Store:    store,
		Sessions: store,
		Renderer: a.Renderer,
		History:  store,
		Logger:   log.Named("pipeline"),
	}
	if cfg.Notify.TelegramToken != "" {
		notifier, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, log.Named("notify"))
		if err != nil {
			log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			deps.Notifier = notifier
		}
	}

	a.Automator, err = pipeline.New(deps,
		pipeline.WithStageRetries(cfg.Automation.StageRetries),
		pipeline.WithStepTimeout(cfg.Automation.StepTimeout))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Ingester returns an ingester for the store. A non-nil profile scores new jobs before they are stored.
func (a *App) Ingester(profile *models.Profile) *ingest.Ingester {
	opts := []ingest.Option{
		ingest.WithActivityLog(a.Activity),
		ingest.WithLogger(a.Logger.Named("ingest")),
	}
	if profile != nil {
		opts = append(opts, ingest.WithMatching(a.Matcher, profile, a.Config.Matching.Concurrency))
	}
	return ingest.New(a.Store, opts...)
}

// Close closes all resources
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// restorePrefills counts prefills made by earlier runs against the current site budgets.
func (a *App) restorePrefills(ctx context.Context) error {
	window := a.Limiter.Config().Window
	prefills, err := a.Store.PrefillsSince(ctx, time.Now().Add(-window))
	if err != nil {
		return fmt.Errorf("failed to restore rate limits: %w", err)
	}
	for _, p := range prefills {
		a.Limiter.Restore(p.Site, p.At)
	}
	return nil
}

func newGateway(ctx context.Context, cfg config.GatewayConfig, log *zap.Logger) (ai.Gateway, error) {
	switch cfg.Provider {
	case "gemini":
		g, err := ai.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.Model, log.Named("gemini"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini gateway: %w", err)
		}
		return g, nil
	case "openai":
		client := &http.Client{Timeout: cfg.Timeout + 5*time.Second}
		g, err := ai.NewOpenAIGateway(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.Model, client, log.Named("openai"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai gateway: %w", err)
		}
		return g, nil
	case "lmstudio":
		client := &http.Client{Timeout: cfg.Timeout + 5*time.Second}
		return ai.NewLMStudioGateway(cfg.LMStudioURL, cfg.Model, client, log.Named("lmstudio")), nil
	default:
		client := &http.Client{Timeout: cfg.Timeout + 5*time.Second}
		return ai.NewOllamaGateway(cfg.OllamaURL, cfg.Model, client, log.Named("ollama")), nil
	}
}

func newBackend(cfg config.AutomationConfig, log *zap.Logger) applicator.Backend {
	if cfg.Backend == "playwright" {
		return applicator.NewPlaywrightBackend(cfg.Headless, log)
	}
	return applicator.NewChromeBackend(cfg.Headless, log)
}
