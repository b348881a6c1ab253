package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/checklist/internal/checklist"
	"github.com/five82/checklist/internal/config"
	"github.com/five82/checklist/internal/pagestate"
	"github.com/five82/checklist/internal/prefs"
	"github.com/five82/checklist/internal/slot"
	"github.com/five82/checklist/internal/state"
	"github.com/five82/checklist/internal/ui"
)

// Options configure the checklist application.
type Options struct {
	Config     config.Config
	ConfigPath string // used to locate prefs.toml next to config.toml
	Logger     *zap.Logger
	PollEvery  time.Duration // zero uses Config.PollInterval
}

// Run boots the TUI and the backend poller, and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prefsPath := config.PrefsPath(opts.ConfigPath)
	userPrefs := prefs.Load(prefsPath)

	client, err := checklist.NewClient(cfg.APIURL, cfg.Token, logger.Named("api"))
	if err != nil {
		return fmt.Errorf("init checklist client: %w", err)
	}

	pages, closePages, err := OpenManager(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePages()

	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = opts.PollEvery
	}
	store := &state.Store{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runPoller(gctx, store, client, interval, logger.Named("poller"))
		return nil
	})
	g.Go(func() error {
		// Quitting the UI stops the poller.
		defer cancel()
		return ui.Run(ui.Options{
			Context:   gctx,
			API:       client,
			Store:     store,
			Pages:     pages,
			Logger:    logger.Named("ui"),
			ThemeName: userPrefs.Theme,
			PrefsPath: prefsPath,
			StartPage: userPrefs.LastPage,
			LogPath:   cfg.LogFile,
		})
	})

	logger.Info("checklist started",
		zap.String("api_url", cfg.APIURL),
		zap.String("state_backend", cfg.StateBackend),
		zap.Duration("poll_interval", interval),
	)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// OpenManager opens the configured state slot and starts a page-state
// manager on it. The returned func closes the manager, which writes the
// final state, and then the slot.
func OpenManager(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pagestate.Manager, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := slot.Open(cfg.StateBackend, cfg.StateDir, pagestate.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open state slot: %w", err)
	}

	mgr, err := pagestate.New(pagestate.Options{
		Slot:            s,
		Logger:          logger.Named("pagestate"),
		MaxBytes:        cfg.MaxStateBytes,
		MaxAge:          cfg.MaxStateAge,
		CleanupInterval: cfg.CleanupInterval,
		VisibilityFlags: ui.VisibilityFlags(),
	})
	if err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("init page state: %w", err)
	}
	if err := mgr.Start(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("start page state: %w", err)
	}

	closeFn := func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("close page state failed", zap.Error(err))
		}
		if err := s.Close(); err != nil {
			logger.Warn("close state slot failed", zap.Error(err))
		}
	}
	return mgr, closeFn, nil
}
