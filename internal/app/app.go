package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/content"
	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/infrastructure/httpapi"
	"NewsletterScanner/internal/infrastructure/mail"
	"NewsletterScanner/internal/infrastructure/metrics"
	"NewsletterScanner/internal/infrastructure/resolver"
	"NewsletterScanner/internal/infrastructure/scheduler"
	"NewsletterScanner/internal/infrastructure/storage"
	"NewsletterScanner/internal/infrastructure/telegram"
	"NewsletterScanner/internal/links"
	"NewsletterScanner/internal/logging"
	"NewsletterScanner/internal/ports"
	"NewsletterScanner/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Recorder
	validator *content.Validator
	runner    *usecase.JobRunner
	closers   []func() error
}

// New builds the application. Store and mail drivers are chosen from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		metrics:   metrics.New(),
		validator: NewValidator(cfg),
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	httpResolver := resolver.NewHTTPResolver(resolver.Config{
		Timeout:           cfg.Pipeline.Timeout(),
		MaxRedirects:      cfg.Pipeline.MaxRedirects,
		UserAgent:         cfg.Pipeline.UserAgent,
		RequestsPerSecond: cfg.Pipeline.RequestsPerSecond,
		Burst:             cfg.Pipeline.Burst,
	}, nil, a.metrics, baseLogger.With("component", "resolver"))

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Resolver:    httpResolver,
		Validator:   a.validator,
		Metrics:     a.metrics,
		Logger:      baseLogger.With("component", "pipeline"),
		LinkBudget:  cfg.Pipeline.LinkBudget,
		Concurrency: cfg.Pipeline.Concurrency,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.runner, err = usecase.NewJobRunner(usecase.JobRunnerDeps{
		Store:    store,
		Source:   a.mailSource(),
		Pipeline: pipeline,
		Metrics:  a.metrics,
		Notifier: a.notifier(),
		Logger:   baseLogger.With("component", "jobs"),
		Defaults: cfg.Pipeline.JobDefaults(),
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	recovered, err := a.runner.RecoverInterrupted(ctx)
	if err != nil {
		baseLogger.Warn("recover interrupted jobs", "error", err)
	}
	if recovered > 0 {
		baseLogger.Info("interrupted jobs marked failed", "count", recovered)
	}

	return a, nil
}

// NewValidator builds the validator from the built-in lists plus configured extras.
func NewValidator(cfg config.Config) *content.Validator {
	return content.NewValidator(content.DefaultRules().Merge(cfg.Filters), content.DefaultRegistry())
}

// Serve runs the HTTP API, and the cron submitter when enabled, until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	server, err := httpapi.NewServer(a.cfg.Server.Addr, httpapi.Deps{
		Jobs:      a.runner,
		Validator: a.validator,
		Metrics:   a.metrics.Handler(),
		NewID:     newJobID,
		Logger:    a.logger.With("component", "http"),
	})
	if err != nil {
		return err
	}

	var cron *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
			return err
		}
		driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
		cron = usecase.NewScheduler(driver, a.runner, scheduledJobID, domain.JobParams{}, a.logger.With("component", "scheduler"))
		if err := cron.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cron != nil {
		if err := cron.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	a.runner.Wait()

	return serveErr
}

// RunOnce executes a single job synchronously and returns its final snapshot.
func (a *Application) RunOnce(ctx context.Context, params domain.JobParams) (domain.JobSnapshot, error) {
	id := newJobID()
	if _, err := a.runner.Create(ctx, id, params); err != nil {
		return domain.JobSnapshot{}, err
	}
	a.runner.Wait()

	snap, err := a.runner.Get(ctx, id)
	if err != nil {
		return domain.JobSnapshot{}, err
	}
	if snap.Status == domain.JobFailed && snap.ErrorMessage != nil {
		return snap, errors.New(*snap.ErrorMessage)
	}
	return snap, nil
}

// LinkReport is the offline classification of one URL.
type LinkReport struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Check classifies and validates urls without touching the network.
func Check(cfg config.Config, urls []string) []LinkReport {
	validator := NewValidator(cfg)
	reports := make([]LinkReport, 0, len(urls))
	for _, raw := range urls {
		decoded := links.Decode(raw)
		kind := links.Classify(decoded)
		report := LinkReport{URL: decoded, Kind: kind.String()}
		if kind != domain.KindJunk {
			verdict := validator.Validate(decoded)
			report.Accepted = verdict.Accepted
			report.Reason = string(verdict.Reason)
		}
		reports = append(reports, report)
	}
	return reports
}

// Close releases store resources.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openStore(ctx context.Context) (ports.JobStore, error) {
	logger := a.logger.With("component", "store")

	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		db, err := sql.Open("postgres", a.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := storage.NewPostgresJobStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		logger.Info("job store ready", "driver", config.StorePostgres)
		return store, nil

	case config.StoreBadger:
		store, err := storage.OpenBadgerJobStore(a.cfg.Store.BadgerDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		logger.Info("job store ready", "driver", config.StoreBadger, "dir", a.cfg.Store.BadgerDir)
		return store, nil

	default:
		logger.Info("job store ready", "driver", config.StoreMemory)
		return storage.NewMemoryJobStore(), nil
	}
}

func (a *Application) mailSource() ports.MailSource {
	logger := a.logger.With("component", "mail")

	if a.cfg.Mail.Driver == config.MailEML {
		return mail.NewDirSource(a.cfg.Mail.EMLDir, logger)
	}
	imapCfg := a.cfg.Mail.IMAP
	return mail.NewIMAPSource(mail.IMAPConfig{
		Host:     imapCfg.Host,
		Port:     imapCfg.Port,
		Username: imapCfg.Username,
		Password: imapCfg.Password,
		UseTLS:   !imapCfg.Plaintext,
		Mailbox:  imapCfg.Mailbox,
	}, logger)
}

func (a *Application) notifier() ports.Notifier {
	tg := a.cfg.Notifications.Telegram
	if !tg.Enabled() {
		return nil
	}
	return telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.APIBase)
}

func newJobID() domain.JobID {
	return domain.JobID(uuid.NewString())
}

func scheduledJobID(trigger time.Time) domain.JobID {
	return domain.JobID(trigger.Format("20060102_150405"))
}
