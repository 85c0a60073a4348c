// Package render implements the stage that turns PUBLISH_READY deals into
// READY_TO_PUBLISH ones by producing the promotional graphic. The renderer
// is slow, so the stage processes one row per run.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/render/renderapi"
	"farewire/internal/services"
	"farewire/internal/stage"
)

// Handler is the render stage.
type Handler struct {
	cfg      *config.Config
	renderer renderapi.Renderer
	logger   *slog.Logger
}

var _ stage.Handler = (*Handler)(nil)

// NewHandler builds the render stage.
func NewHandler(cfg *config.Config, renderer renderapi.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "render"),
	}
}

// SetLogger installs the run-scoped logger.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// HealthCheck verifies the renderer is wired.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.renderer == nil {
		return stage.Unhealthy("render", "render client not configured")
	}
	return stage.Healthy("render")
}

// Prepare rejects rows missing card fields.
func (h *Handler) Prepare(_ context.Context, d *deal.Deal) error {
	if strings.TrimSpace(d.Get(deal.ColDestinationCity)) == "" {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("deal %s has no destination city", d.ID), nil)
	}
	if _, ok := d.PriceGBP(); !ok {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("deal %s has no usable price", d.ID), nil)
	}
	if _, ok := d.OutboundDate(); !ok {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("deal %s has no usable outbound date", d.ID), nil)
	}
	if _, ok := d.ReturnDate(); !ok {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("deal %s has no usable return date", d.ID), nil)
	}
	return nil
}

// Execute renders the card and queues the image URL.
func (h *Handler) Execute(ctx context.Context, d *deal.Deal) error {
	price, _ := d.PriceGBP()
	out, _ := d.OutboundDate()
	ret, _ := d.ReturnDate()

	imageURL, err := h.renderer.Render(ctx, renderapi.Payload{
		To:    d.Get(deal.ColDestinationCity),
		From:  d.Get(deal.ColOriginCity),
		Out:   out.Format("020106"),
		In:    ret.Format("020106"),
		Price: fmt.Sprintf("£%d", int(math.Ceil(price))),
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "render card", "", err)
	}

	d.Set(deal.ColImageURL, imageURL)
	h.logger.Info("card rendered",
		logging.String(logging.FieldDealID, d.ID),
		logging.String("image_url", imageURL))
	return nil
}
