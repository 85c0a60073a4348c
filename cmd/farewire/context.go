package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"farewire/internal/config"
	"farewire/internal/deadletter"
	"farewire/internal/deal"
	"farewire/internal/lease"
	"farewire/internal/logging"
	"farewire/internal/notifications"
	"farewire/internal/runner"
	"farewire/internal/sheet"
	"farewire/internal/sheet/gridapi"
	"farewire/internal/sheet/sqlitegrid"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = newLogger(cfg)
	})
	return c.logger, c.loggerErr
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var logFile string
	if cfg.Paths.LogDir != "" {
		logFile = filepath.Join(cfg.Paths.LogDir, "farewire.log")
	}
	return logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogFile: logFile,
	})
}

// withAdapter opens the configured store backend, runs fn against an adapter
// over it, and closes the backend afterwards.
func (c *commandContext) withAdapter(ctx context.Context, fn func(*sheet.Adapter) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	switch cfg.Sheet.Backend {
	case "sqlite":
		grid, err := sqlitegrid.Open(cfg.GridDBPath(), cfg.Sheet.Tab)
		if err != nil {
			return fmt.Errorf("open grid database: %w", err)
		}
		defer grid.Close()
		if err := grid.EnsureHeaders(ctx, deal.AllColumns); err != nil {
			return fmt.Errorf("seed grid headers: %w", err)
		}
		return fn(sheet.NewAdapter(grid))
	case "api":
		client := gridapi.NewClient(cfg.Sheet.BaseURL, cfg.Sheet.APIToken, cfg.Sheet.SpreadsheetID, cfg.Sheet.Tab)
		return fn(sheet.NewAdapter(client))
	default:
		return fmt.Errorf("sheet backend: unsupported value %q", cfg.Sheet.Backend)
	}
}

// buildRunner assembles the stage runner and its collaborators over an open
// adapter.
func (c *commandContext) buildRunner(adapter *sheet.Adapter) (*runner.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	workerID := runner.WorkerID(cfg)
	leases := lease.NewManager(adapter, workerID, lease.Options{
		MaxLockAge:   time.Duration(cfg.Lease.MaxLockAgeMinutes) * time.Minute,
		VerifyClaims: cfg.Lease.VerifyClaims,
		Logger:       logger,
	})
	ledger := deadletter.NewLedger(adapter, cfg.DeadLetter.MaxFails, deadStatus(cfg), logger)
	notifier := notifications.NewService(cfg)

	return runner.New(cfg, adapter, leases, ledger, notifier, logger), nil
}

func deadStatus(cfg *config.Config) deal.Status {
	if status, ok := deal.ParseStatus(cfg.DeadLetter.DeadStatus); ok {
		return status
	}
	return deal.StatusErrorHard
}
