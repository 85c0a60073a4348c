// Package scoring implements the stage that turns NEW deals into SCORED
// ones: an external model judges price and timing, the stage clamps the
// verdict into range and derives the weighted total.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/scoring/llm"
	"farewire/internal/services"
	"farewire/internal/stage"
)

// Categories is the closed theme vocabulary downstream templates understand.
// Anything else from the model is coerced to the fallback.
var Categories = []string{"winter_sun", "surf", "snow", "city_breaks", "shoulder"}

// FallbackCategory absorbs invalid model output.
const FallbackCategory = "shoulder"

// Handler is the scoring stage.
type Handler struct {
	cfg      *config.Config
	assessor llm.Assessor
	logger   *slog.Logger
}

var _ stage.Handler = (*Handler)(nil)

// NewHandler builds the scoring stage.
func NewHandler(cfg *config.Config, assessor llm.Assessor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		assessor: assessor,
		logger:   logging.NewComponentLogger(logger, "scoring"),
	}
}

// SetLogger installs the run-scoped logger.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// HealthCheck verifies the assessor is wired.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.assessor == nil {
		return stage.Unhealthy("scoring", "assessment client not configured")
	}
	return stage.Healthy("scoring")
}

// Prepare rejects rows missing the fields the model needs.
func (h *Handler) Prepare(_ context.Context, d *deal.Deal) error {
	if _, ok := d.PriceGBP(); !ok {
		return services.Wrap(services.ErrValidation, "score", "prepare",
			fmt.Sprintf("deal %s has no usable price", d.ID), nil)
	}
	if d.Get(deal.ColDestinationCity) == "" {
		return services.Wrap(services.ErrValidation, "score", "prepare",
			fmt.Sprintf("deal %s has no destination city", d.ID), nil)
	}
	return nil
}

// Execute asks the model for a verdict and queues the score columns.
func (h *Handler) Execute(ctx context.Context, d *deal.Deal) error {
	price, _ := d.PriceGBP()
	assessment, err := h.assessor.Assess(ctx, llm.Request{
		OriginCity:         d.Get(deal.ColOriginCity),
		DestinationCity:    d.Get(deal.ColDestinationCity),
		DestinationCountry: d.Get(deal.ColDestinationCountry),
		OutboundDate:       d.Get(deal.ColOutboundDate),
		ReturnDate:         d.Get(deal.ColReturnDate),
		Airline:            d.Get(deal.ColAirline),
		Stops:              d.Stops(),
		PriceGBP:           price,
		Theme:              d.Get(deal.ColTheme),
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "score", "assess", "", err)
	}

	priceScore := clampScore(assessment.PriceScore)
	timingScore := clampScore(assessment.TimingScore)
	category := normalizeCategory(assessment.Category)
	if category != assessment.Category {
		h.logger.Warn("model returned unknown category",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("category", assessment.Category))
	}

	total := clampScore(h.cfg.Scoring.PriceWeight*priceScore + h.cfg.Scoring.TimingWeight*timingScore)

	d.Set(deal.ColPriceScore, formatScore(priceScore))
	d.Set(deal.ColTimingScore, formatScore(timingScore))
	d.Set(deal.ColAIScore, formatScore(total))
	d.Set(deal.ColAICategory, category)

	h.logger.Info("deal scored",
		logging.String(logging.FieldDealID, d.ID),
		logging.Float64("score", total),
		logging.String("category", category))
	return nil
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func normalizeCategory(category string) string {
	for _, known := range Categories {
		if category == known {
			return category
		}
	}
	return FallbackCategory
}

func formatScore(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}
