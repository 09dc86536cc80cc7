package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"IssueTriage/internal/config"
	"IssueTriage/internal/feed"
	"IssueTriage/internal/infrastructure/github"
	"IssueTriage/internal/infrastructure/llm"
	"IssueTriage/internal/infrastructure/scheduler"
	"IssueTriage/internal/infrastructure/storage"
	"IssueTriage/internal/infrastructure/telegram"
	"IssueTriage/internal/infrastructure/terminal"
	"IssueTriage/internal/logging"
	"IssueTriage/internal/metrics"
	"IssueTriage/internal/ports"
	"IssueTriage/internal/ratelimit"
	"IssueTriage/internal/repair"
	"IssueTriage/internal/schema"
	"IssueTriage/internal/usecase"
)

// Options carries command-line switches and the operator terminal.
type Options struct {
	NoRepair bool
	In       io.Reader
	Out      io.Writer
	// Completer replaces the HTTP completion client (tests).
	Completer ports.Completer
	// Source replaces the GitHub feed (tests).
	Source ports.PostSource
}

// Application wires configs to use cases and owns every long-lived client.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	schema   *schema.Definition
	store    storage.Store
	metrics  *metrics.Metrics
	pipeline *usecase.Pipeline
}

// New builds the runnable application. Schema resolution failures and store
// connection errors are returned here, before any post is fetched.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}

	validator := schema.NewValidator(os.DirFS(cfg.Schema.Dir))
	def, err := validator.Load(cfg.Schema.Key)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", cfg.Schema.Key, err)
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.Storage.Driver,
		Dir:         cfg.Storage.Dir,
		DSN:         cfg.Storage.DSN,
		RedisAddr:   cfg.Storage.RedisAddr,
		RedisDB:     cfg.Storage.RedisDB,
		RedisPrefix: cfg.Storage.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()

	source := opts.Source
	if source == nil {
		client := github.NewClient(github.Options{
			Token:      cfg.GitHub.Token,
			Owner:      cfg.GitHub.Owner,
			Repo:       cfg.GitHub.Repo,
			APIURL:     cfg.GitHub.APIURL,
			GraphQLURL: cfg.GitHub.GraphQLURL,
			PageSize:   cfg.GitHub.PageSize,
		})
		registry := feed.NewRegistry()
		registry.Register(github.NewIssuesCategory(client))
		registry.Register(github.NewDiscussionsCategory(client))
		source = feed.NewSource(registry, baseLogger.With("component", "feed"))
	}

	completer := opts.Completer
	if completer == nil {
		completer = llm.NewChatGPTClient(cfg.LLM)
	}
	limiter := ratelimit.New(ratelimit.Options{
		MaxCalls:   cfg.LLM.RatePerMinute,
		Per:        time.Minute,
		Backoff:    cfg.LLM.RetryBackoff,
		MaxRetries: cfg.LLM.MaxRetries,
		OnWait:     m.OnWait,
		OnRetry:    m.OnRetry,
	})

	prompt, err := cfg.LLM.Prompt()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// one reader so the operator prompt and the editor prompt share buffering
	in := bufio.NewReader(opts.In)
	editor := terminal.NewEditor(cfg.Repair.Editor, in, opts.Out, baseLogger.With("component", "editor"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:             source,
		Store:              store,
		Classifier:         usecase.NewClassifier(llm.NewLimitedCompleter(completer, limiter), prompt),
		Schema:             def,
		Repairer:           repair.NewRepairer(editor, baseLogger.With("component", "repair")),
		Operator:           terminal.NewOperator(in, opts.Out),
		Notifier:           notifier,
		Recorder:           m,
		Logger:             baseLogger.With("component", "pipeline"),
		Categories:         cfg.GitHub.Categories,
		DiscussionMaxChars: cfg.GitHub.DiscussionMaxChars,
		RepairEnabled:      cfg.Repair.Enabled && !opts.NoRepair,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		schema:   def,
		store:    store,
		metrics:  m,
		pipeline: pipeline,
	}, nil
}

// Run performs a single pipeline pass.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	return a.pipeline.Run(ctx)
}

// Watch runs the pipeline on the configured cron schedule until ctx ends.
// Metrics are served meanwhile when metrics.addr is set.
func (a *Application) Watch(ctx context.Context) error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.cfg.Scheduler.RunOnStart)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() { serveErr <- a.metrics.Serve(ctx, addr, a.logger) }()
	}

	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching", "cron", a.cfg.Scheduler.CronExpression, "next", driver.Next(time.Now()))

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if stopErr := sched.Stop(stopCtx); stopErr != nil && err == nil {
		err = fmt.Errorf("stop scheduler: %w", stopErr)
	}
	return err
}

// Check re-validates every stored record against the active schema.
func (a *Application) Check(ctx context.Context) ([]usecase.AuditResult, error) {
	return usecase.Audit(ctx, a.store, a.schema)
}

// Known lists processed post numbers.
func (a *Application) Known(ctx context.Context) ([]int, error) {
	return usecase.KnownNums(ctx, a.store)
}

// Close releases the store connection.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
