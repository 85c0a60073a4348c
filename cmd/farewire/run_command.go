package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"farewire/internal/config"
	"farewire/internal/deadletter"
	"farewire/internal/deal"
	"farewire/internal/notifications"
	"farewire/internal/runner"
	"farewire/internal/sheet"
	"farewire/internal/stage"
)

// newRunCommand drives one full pipeline pass: discovery, every claiming
// stage in status order, then a failure ledger sweep. Intended for cron.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipDiscovery bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full pipeline pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stages := []struct {
				definition func(*config.Config) runner.Definition
				handler    func(*config.Config, *commandContext) (stage.Handler, error)
			}{
				{scoreDefinition, newScoringHandler},
				{enrichDefinition, newEnrichHandler},
				{renderDefinition, newRenderHandler},
				{instagramDefinition, newInstagramHandler},
				{telegramFreeDefinition, newTelegramFreeHandler},
				{telegramVIPDefinition, newTelegramVIPHandler},
			}

			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				if !skipDiscovery {
					if err := runDiscovery(cmd, ctx, adapter); err != nil {
						return fmt.Errorf("discover: %w", err)
					}
				}
				for _, s := range stages {
					def := s.definition(cfg)
					handler, err := s.handler(cfg, ctx)
					if err != nil {
						return fmt.Errorf("%s: %w", def.Name, err)
					}
					if err := runStage(cmd, ctx, adapter, def, handler); err != nil {
						return fmt.Errorf("%s: %w", def.Name, err)
					}
				}
				return runSweep(cmd, ctx, adapter)
			})
		},
	}

	cmd.Flags().BoolVar(&skipDiscovery, "skip-discovery", false, "Skip the discovery step")
	return cmd
}

func newDeadletterCommand(ctx *commandContext) *cobra.Command {
	deadletterCmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Failure ledger maintenance",
	}
	deadletterCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Requeue retryable ERROR rows and promote exhausted ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				return runSweep(cmd, ctx, adapter)
			})
		},
	})
	return deadletterCmd
}

func runSweep(cmd *cobra.Command, ctx *commandContext, adapter *sheet.Adapter) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	inputStatus := deal.StatusError
	if status, ok := deal.ParseStatus(cfg.DeadLetter.InputStatus); ok {
		inputStatus = status
	}

	ledger := deadletter.NewLedger(adapter, cfg.DeadLetter.MaxFails, deadStatus(cfg), logger)
	result, err := ledger.Sweep(cmd.Context(), inputStatus, cfg.DeadLetter.MaxRowsPerRun)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sweep: %d examined, %d requeued, %d promoted, truncated=%v\n",
		result.Examined, result.Requeued, result.Promoted, result.Truncated)
	return nil
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test message to the configured webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
