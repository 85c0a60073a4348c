// Package enrich implements the stage between SCORED and PUBLISH_READY: it
// routes each deal to a booking link and builds the caption the publish
// channels reuse.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/services"
	"farewire/internal/stage"
)

// Handler is the enrichment stage.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	titler cases.Caser
}

var _ stage.Handler = (*Handler)(nil)

// NewHandler builds the enrichment stage.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "enrich"),
		titler: cases.Title(language.BritishEnglish),
	}
}

// SetLogger installs the run-scoped logger.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// HealthCheck verifies a search link base is configured; without it no deal
// can get a booking link at all.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.Enrich.SearchBaseURL) == "" {
		return stage.Unhealthy("enrich", "search base url not configured")
	}
	return stage.Healthy("enrich")
}

// Prepare rejects rows missing routing fields.
func (h *Handler) Prepare(_ context.Context, d *deal.Deal) error {
	if d.Get(deal.ColOriginIATA) == "" || d.Get(deal.ColDestinationIATA) == "" {
		return services.Wrap(services.ErrValidation, "enrich", "prepare",
			fmt.Sprintf("deal %s is missing airport codes", d.ID), nil)
	}
	if _, ok := d.OutboundDate(); !ok {
		return services.Wrap(services.ErrValidation, "enrich", "prepare",
			fmt.Sprintf("deal %s has no usable outbound date", d.ID), nil)
	}
	if _, ok := d.ReturnDate(); !ok {
		return services.Wrap(services.ErrValidation, "enrich", "prepare",
			fmt.Sprintf("deal %s has no usable return date", d.ID), nil)
	}
	return nil
}

// Execute queues the booking link and caption columns.
func (h *Handler) Execute(_ context.Context, d *deal.Deal) error {
	link := h.routeLink(d)
	caption := h.buildCaption(d)

	d.Set(deal.ColBookingURL, link)
	d.Set(deal.ColAICaption, caption)

	h.logger.Info("deal enriched",
		logging.String(logging.FieldDealID, d.ID),
		logging.String("booking_url", link))
	return nil
}

// routeLink prefers a direct checkout link for cheap short-haul deals into
// supported countries; everything else gets a search deep link so the reader
// still lands somewhere useful.
func (h *Handler) routeLink(d *deal.Deal) string {
	if h.checkoutEligible(d) {
		if link := h.checkoutLink(d); link != "" {
			return link
		}
	}
	return h.searchLink(d)
}

func (h *Handler) checkoutEligible(d *deal.Deal) bool {
	base := strings.TrimSpace(h.cfg.Enrich.CheckoutBaseURL)
	if base == "" {
		return false
	}
	price, ok := d.PriceGBP()
	if !ok || price <= 0 {
		return false
	}
	if h.cfg.Enrich.MaxCheckoutPrice > 0 && price > h.cfg.Enrich.MaxCheckoutPrice {
		return false
	}
	country := strings.ToUpper(strings.TrimSpace(d.Get(deal.ColDestinationCountry)))
	for _, allowed := range h.cfg.Enrich.CheckoutCountries {
		if country == allowed {
			return true
		}
	}
	return false
}

func (h *Handler) checkoutLink(d *deal.Deal) string {
	base := strings.TrimRight(strings.TrimSpace(h.cfg.Enrich.CheckoutBaseURL), "/")
	u, err := url.Parse(base + "/checkout")
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("origin", d.Get(deal.ColOriginIATA))
	q.Set("destination", d.Get(deal.ColDestinationIATA))
	q.Set("out", d.Get(deal.ColOutboundDate))
	q.Set("ret", d.Get(deal.ColReturnDate))
	q.Set("ref", d.ID)
	u.RawQuery = q.Encode()
	return u.String()
}

// searchLink builds a Skyscanner-style deep link:
// {base}/{origin}/{dest}/{yymmdd}/{yymmdd}/
func (h *Handler) searchLink(d *deal.Deal) string {
	base := strings.TrimRight(strings.TrimSpace(h.cfg.Enrich.SearchBaseURL), "/")
	out, _ := d.OutboundDate()
	ret, _ := d.ReturnDate()
	return fmt.Sprintf("%s/%s/%s/%s/%s/",
		base,
		strings.ToLower(d.Get(deal.ColOriginIATA)),
		strings.ToLower(d.Get(deal.ColDestinationIATA)),
		out.Format("060102"),
		ret.Format("060102"))
}

// buildCaption renders the factual caption layout shared by every channel.
func (h *Handler) buildCaption(d *deal.Deal) string {
	origin := h.titler.String(strings.ToLower(strings.TrimSpace(d.Get(deal.ColOriginCity))))
	dest := h.titler.String(strings.ToLower(strings.TrimSpace(d.Get(deal.ColDestinationCity))))

	price := strings.TrimSpace(d.Get(deal.ColPriceGBP))
	if v, ok := d.PriceGBP(); ok {
		price = fmt.Sprintf("%.0f", v)
	}

	lines := []string{
		fmt.Sprintf("FROM %s TO %s", origin, dest),
		fmt.Sprintf("OUT %s RETURN %s PRICE £%s",
			ddmmyy(d.OutboundDate), ddmmyy(d.ReturnDate), price),
		"",
		"Adventure for less. Travel thoughtfully.",
	}
	return strings.Join(lines, "\n")
}

func ddmmyy(parse func() (time.Time, bool)) string {
	t, ok := parse()
	if !ok {
		return ""
	}
	return t.Format("020106")
}
