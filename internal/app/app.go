package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"card-price-alerts/internal/alerting"
	"card-price-alerts/internal/config"
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/scheduler"
	"card-price-alerts/internal/service"
	"card-price-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSource() *fetcher.Client {
	return fetcher.NewClient(fetcher.ClientOptions{
		BaseURL:    a.Config.Pricing.BaseURL,
		APIKey:     a.Config.Pricing.APIKey,
		Timeout:    a.Config.Pricing.RequestTimeout,
		MaxRetries: a.Config.Pricing.MaxRetries,
		UserAgent:  a.Config.Pricing.UserAgent,
	}, a.Logger)
}

// newNotifier returns nil when alerting is disabled.
func (a *App) newNotifier() (alerting.Notifier, error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil
	}
	if err := a.Config.RequireNotifier(); err != nil {
		return nil, err
	}

	cfg := a.Config.Alerting
	switch strings.ToLower(cfg.Platform) {
	case config.PlatformDiscord:
		return alerting.NewDiscordNotifier(cfg.Discord.BotToken, cfg.Discord.APIBase, cfg.Timeout, a.Logger), nil
	case config.PlatformTelegram:
		return alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger), nil
	case config.PlatformLog:
		return alerting.NewLogNotifier(a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown alerting platform %q", cfg.Platform)
	}
}

func (a *App) openStore() (storage.Store, func(), error) {
	store, err := storage.Open(a.Config.Store, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close store")
		}
	}
	return store, closer, nil
}

// openAudit returns a nil store when database.dsn is empty.
func (a *App) openAudit(ctx context.Context) (*storage.AuditStore, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	audit := storage.NewAuditStore(pool)
	if err := audit.EnsureSchema(ctx); err != nil {
		audit.Close()
		return nil, nil, err
	}
	return audit, audit.Close, nil
}

type serviceOptions struct {
	scheduler *scheduler.Scheduler
	threshold float64
	source    fetcher.PriceSource
	store     storage.Store
	// manage skips the notifier and the alert log (track, untrack, show).
	manage bool
}

// newService assembles the tracking service. The returned closer releases
// everything it opened.
func (a *App) newService(ctx context.Context, opts serviceOptions) (*service.Service, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store := opts.store
	if store == nil {
		opened, closeStore, err := a.openStore()
		if err != nil {
			return nil, nil, err
		}
		store = opened
		closers = append(closers, closeStore)
	}

	var (
		notifier alerting.Notifier
		alerts   storage.AlertStore
	)
	if !opts.manage {
		var err error
		notifier, err = a.newNotifier()
		if err != nil {
			closeAll()
			return nil, nil, err
		}

		audit, closeAudit, err := a.openAudit(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if audit != nil {
			alerts = audit
			closers = append(closers, closeAudit)
		} else {
			a.Logger.Debug().Msg("database.dsn not configured; alert log and advisory lock disabled")
		}
	}

	source := opts.source
	if source == nil {
		source = a.newSource()
	}

	cfg := *a.Config
	cfg.Alerting.ThresholdPct = a.Config.ResolveThreshold(opts.threshold)

	svc := service.New(&cfg, opts.scheduler, store, source, notifier, alerts, a.Logger)
	return svc, closeAll, nil
}

// Run executes the long-running tracking service until SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context, runNow bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
		RunOnStart:    runNow,
	}, a.Logger)

	svc, closeAll, err := a.newService(ctx, serviceOptions{scheduler: sched})
	if err != nil {
		return err
	}
	defer closeAll()

	a.Logger.Info().
		Str("store", a.Config.Store.Backend).
		Str("platform", a.Config.Alerting.Platform).
		Msg("starting tracking service")
	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	svc.Stop()
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	GroupID string
}

// TrackOptions configure the track command.
type TrackOptions struct {
	GroupID     string
	ItemID      string
	Destination string
	CreatedBy   string
}

// SearchOptions configure the search command.
type SearchOptions struct {
	Query  string
	Limit  int
	Market fetcher.Market
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	GroupID     string
	Limit       int
	PruneBefore *time.Time
}

// ExportOptions hold parameters for exporting tracked baselines.
type ExportOptions struct {
	GroupID string
	PNGPath string
	CSVPath string
}

// HistoryOptions select the tier and period of a price history lookup.
type HistoryOptions struct {
	CardID  string
	Tier    string
	Period  string
	PNGPath string
}
