package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/discovery"
	"farewire/internal/discovery/duffel"
	"farewire/internal/enrich"
	"farewire/internal/publish"
	"farewire/internal/publish/instagram"
	"farewire/internal/publish/telegram"
	"farewire/internal/render"
	"farewire/internal/render/renderapi"
	"farewire/internal/runner"
	"farewire/internal/scoring"
	"farewire/internal/scoring/llm"
	"farewire/internal/sheet"
	"farewire/internal/stage"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Search configured routes and append new deal rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				return runDiscovery(cmd, ctx, adapter)
			})
		},
	}
}

func runDiscovery(cmd *cobra.Command, ctx *commandContext, adapter *sheet.Adapter) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	searcher, err := duffel.New(cfg.Discovery.APIKey, cfg.Discovery.BaseURL,
		duffel.WithHTTPClient(timeoutClient(cfg.Discovery.TimeoutSeconds)))
	if err != nil {
		return fmt.Errorf("flight search client: %w", err)
	}

	result, err := discovery.NewFeeder(cfg, adapter, searcher, logger).Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"discover: %d routes searched, %d offers seen, %d inserted, %d duplicates, %d filtered\n",
		result.Searched, result.Offers, result.Inserted, result.Duplicates, result.Filtered)
	return nil
}

func newScoreCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "score", "Score claimed NEW deals with the LLM assessor",
		scoreDefinition, newScoringHandler)
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "enrich", "Attach booking links and captions to scored deals",
		enrichDefinition, newEnrichHandler)
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "render", "Render the promotional card for publish-ready deals",
		renderDefinition, newRenderHandler)
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Post rendered deals to a channel",
	}
	publishCmd.AddCommand(newStageCommand(ctx, "instagram", "Post the card to instagram",
		instagramDefinition, newInstagramHandler))
	publishCmd.AddCommand(newStageCommand(ctx, "telegram-free", "Post the card to the free telegram channel",
		telegramFreeDefinition, newTelegramFreeHandler))
	publishCmd.AddCommand(newStageCommand(ctx, "telegram-vip", "Post the card to the VIP telegram channel",
		telegramVIPDefinition, newTelegramVIPHandler))
	return publishCmd
}

// newStageCommand builds a command that claims rows for one stage and runs
// its handler over them.
func newStageCommand(ctx *commandContext, use, short string,
	definition func(*config.Config) runner.Definition,
	handler func(*config.Config, *commandContext) (stage.Handler, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			h, err := handler(cfg, ctx)
			if err != nil {
				return err
			}
			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				return runStage(cmd, ctx, adapter, definition(cfg), h)
			})
		},
	}
}

func runStage(cmd *cobra.Command, ctx *commandContext, adapter *sheet.Adapter, def runner.Definition, handler stage.Handler) error {
	r, err := ctx.buildRunner(adapter)
	if err != nil {
		return err
	}
	res, err := r.Run(cmd.Context(), def, handler)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: processed %d, failed %d, dead-lettered %d in %s\n",
		def.Name, res.Processed, res.Failed, res.Dead, res.Duration.Round(time.Millisecond))
	return nil
}

func scoreDefinition(cfg *config.Config) runner.Definition {
	required := append([]string{}, deal.PayloadColumns...)
	required = append(required, deal.ColTheme,
		deal.ColAIScore, deal.ColAICategory, deal.ColPriceScore, deal.ColTimingScore)
	return runner.Definition{
		Name:     "score",
		Wanted:   deal.StatusNew,
		InFlight: deal.StatusScoring,
		Done:     deal.StatusScored,
		Required: required,
		MaxRows:  cfg.Scoring.MaxRowsPerRun,
	}
}

func enrichDefinition(cfg *config.Config) runner.Definition {
	required := append([]string{}, deal.PayloadColumns...)
	required = append(required, deal.ColBookingURL, deal.ColAICaption)
	return runner.Definition{
		Name:     "enrich",
		Wanted:   deal.StatusScored,
		InFlight: deal.StatusEnriching,
		Done:     deal.StatusPublishReady,
		Required: required,
		MaxRows:  cfg.Enrich.MaxRowsPerRun,
	}
}

// The renderer is slow, so the render and publish stages process one row per
// run and rely on repeated invocations to drain the store.
func renderDefinition(*config.Config) runner.Definition {
	return runner.Definition{
		Name:     "render",
		Wanted:   deal.StatusPublishReady,
		InFlight: deal.StatusRendering,
		Done:     deal.StatusReadyToPublish,
		Required: []string{
			deal.ColOriginCity, deal.ColDestinationCity,
			deal.ColOutboundDate, deal.ColReturnDate,
			deal.ColPriceGBP, deal.ColImageURL,
		},
	}
}

func instagramDefinition(*config.Config) runner.Definition {
	return runner.Definition{
		Name:     "publish-instagram",
		Wanted:   deal.StatusReadyToPublish,
		InFlight: deal.StatusPostingInstagram,
		Done:     deal.StatusPostedInstagram,
		Required: []string{
			deal.ColImageURL, deal.ColAICaption,
			deal.ColPostedInstagramTS, deal.ColInstagramMediaID,
		},
	}
}

func telegramFreeDefinition(*config.Config) runner.Definition {
	return runner.Definition{
		Name:     "publish-telegram-free",
		Wanted:   deal.StatusPostedInstagram,
		InFlight: deal.StatusPostingTelegramFree,
		Done:     deal.StatusPostedTelegramFree,
		Required: []string{
			deal.ColImageURL, deal.ColAICaption,
			deal.ColPostedTelegramFreeTS, deal.ColTelegramFreeMessageID,
		},
	}
}

func telegramVIPDefinition(*config.Config) runner.Definition {
	return runner.Definition{
		Name:     "publish-telegram-vip",
		Wanted:   deal.StatusPostedTelegramFree,
		InFlight: deal.StatusPostingTelegramVIP,
		Done:     deal.StatusPostedAll,
		Required: []string{
			deal.ColImageURL, deal.ColAICaption, deal.ColBookingURL,
			deal.ColPostedTelegramVIPTS, deal.ColTelegramVIPMessageID,
		},
	}
}

func newEnrichHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	return enrich.NewHandler(cfg, logger), nil
}

func newScoringHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	assessor, err := llm.New(cfg.Scoring.APIKey, cfg.Scoring.BaseURL, cfg.Scoring.Model,
		llm.WithHTTPClient(timeoutClient(cfg.Scoring.TimeoutSeconds)))
	if err != nil {
		return nil, fmt.Errorf("scoring client: %w", err)
	}
	return scoring.NewHandler(cfg, assessor, logger), nil
}

func newRenderHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	renderer, err := renderapi.New(cfg.Render.URL,
		renderapi.WithHTTPClient(timeoutClient(cfg.Render.TimeoutSeconds)))
	if err != nil {
		return nil, fmt.Errorf("render client: %w", err)
	}
	return render.NewHandler(cfg, renderer, logger), nil
}

func newInstagramHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	var publisher instagram.Publisher
	if cfg.Publish.Instagram.Enabled {
		client, err := instagram.New(cfg.Publish.Instagram.AccessToken, cfg.Publish.Instagram.BusinessAccountID,
			instagram.WithHTTPClient(timeoutClient(cfg.Publish.TimeoutSeconds)))
		if err != nil {
			return nil, fmt.Errorf("instagram client: %w", err)
		}
		publisher = client
	}
	return publish.NewInstagramHandler(cfg, publisher, logger), nil
}

func newTelegramFreeHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, sender, err := telegramCollaborators(cfg, ctx)
	if err != nil {
		return nil, err
	}
	return publish.NewTelegramFreeHandler(cfg, sender, logger), nil
}

func newTelegramVIPHandler(cfg *config.Config, ctx *commandContext) (stage.Handler, error) {
	logger, sender, err := telegramCollaborators(cfg, ctx)
	if err != nil {
		return nil, err
	}
	return publish.NewTelegramVIPHandler(cfg, sender, logger), nil
}

func telegramCollaborators(cfg *config.Config, ctx *commandContext) (*slog.Logger, telegram.Sender, error) {
	l, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	client, err := telegram.New(cfg.Publish.Telegram.BotToken,
		telegram.WithHTTPClient(timeoutClient(cfg.Publish.TimeoutSeconds)))
	if err != nil {
		return nil, nil, fmt.Errorf("telegram client: %w", err)
	}
	return l, client, nil
}

func timeoutClient(seconds int) *http.Client {
	if seconds <= 0 {
		return nil
	}
	return &http.Client{Timeout: time.Duration(seconds) * time.Second}
}
