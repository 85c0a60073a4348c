// Package discovery searches configured routes for flight offers and appends
// qualifying deals to the store as NEW rows. Unlike the claiming stages it
// produces rows instead of consuming them.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/discovery/duffel"
	"farewire/internal/fingerprint"
	"farewire/internal/logging"
	"farewire/internal/services"
	"farewire/internal/sheet"
)

// Feeder drives one discovery run.
type Feeder struct {
	cfg      *config.Config
	adapter  *sheet.Adapter
	searcher duffel.Searcher
	logger   *slog.Logger

	now func() time.Time
}

// NewFeeder wires a feeder from its collaborators.
func NewFeeder(cfg *config.Config, adapter *sheet.Adapter, searcher duffel.Searcher, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Feeder{
		cfg:      cfg,
		adapter:  adapter,
		searcher: searcher,
		logger:   logging.NewComponentLogger(logger, "discovery"),
		now:      time.Now,
	}
}

// Result summarizes one discovery run.
type Result struct {
	Searched   int
	Offers     int
	Inserted   int
	Duplicates int
	Filtered   int
}

// Run searches every configured route and appends new deals. Per-route
// search failures are logged and skipped; only store access failures abort
// the run.
func (f *Feeder) Run(ctx context.Context) (Result, error) {
	var res Result
	if len(f.cfg.Discovery.Routes) == 0 {
		f.logger.Warn("no routes configured, nothing to discover")
		return res, nil
	}

	snap, err := f.adapter.ReadAll(ctx)
	if err != nil {
		return res, err
	}
	if err := snap.RequireColumns(deal.ColDealID, deal.ColStatus); err != nil {
		return res, err
	}
	index := fingerprint.LoadIndex(snap)
	f.logger.Info("loaded fingerprint index", logging.Int("known", index.Len()))

	maxInserts := f.cfg.Discovery.MaxNewRows
	if maxInserts < 1 {
		maxInserts = 1
	}

	var rows []map[string]string
	for _, route := range f.cfg.Discovery.Routes {
		if len(rows) >= maxInserts {
			break
		}
		res.Searched++

		offers, err := f.searchRoute(ctx, route)
		if err != nil {
			f.logger.Warn("route search failed",
				logging.String("route", route.OriginIATA+"-"+route.DestinationIATA),
				logging.Error(err))
			continue
		}
		res.Offers += len(offers)

		for _, offer := range offers {
			if len(rows) >= maxInserts {
				break
			}
			fields, ok := f.parseOffer(offer, route)
			if !ok {
				res.Filtered++
				continue
			}
			fp := fields[deal.ColFingerprint]
			if index.Contains(fp) {
				res.Duplicates++
				continue
			}
			index.Add(fp)
			rows = append(rows, fields)
		}
	}

	if len(rows) > 0 {
		if err := f.adapter.AppendRecords(ctx, snap, rows); err != nil {
			return res, services.Wrap(services.ErrTransient, "discover", "append deals", "", err)
		}
	}
	res.Inserted = len(rows)

	f.logger.Info("discovery run completed",
		logging.Int("searched", res.Searched),
		logging.Int("offers", res.Offers),
		logging.Int("inserted", res.Inserted),
		logging.Int("duplicates", res.Duplicates))
	return res, nil
}

func (f *Feeder) searchRoute(ctx context.Context, route config.Route) ([]duffel.Offer, error) {
	tripDays := route.TripLengthDays
	if tripDays < 1 {
		tripDays = f.cfg.Discovery.MinTripDays
	}
	depart := f.now().UTC().AddDate(0, 0, f.cfg.Discovery.DaysAhead)
	ret := depart.AddDate(0, 0, tripDays)

	return f.searcher.Search(ctx, duffel.Query{
		Origin:         route.OriginIATA,
		Destination:    route.DestinationIATA,
		DepartureDate:  depart.Format("2006-01-02"),
		ReturnDate:     ret.Format("2006-01-02"),
		CabinClass:     route.CabinClass,
		MaxConnections: route.MaxConnections,
	})
}

// parseOffer turns an offer into a store row, applying the currency, price,
// country, and trip-length filters.
func (f *Feeder) parseOffer(offer duffel.Offer, route config.Route) (map[string]string, bool) {
	outDate := offer.OutboundDate()
	retDate := offer.ReturnDate()
	if outDate == "" || retDate == "" {
		return nil, false
	}
	if !f.tripLengthOK(outDate, retDate) {
		return nil, false
	}
	if strings.ToUpper(strings.TrimSpace(offer.TotalCurrency)) != "GBP" {
		return nil, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(offer.TotalAmount), 64)
	if err != nil || price <= 0 {
		return nil, false
	}
	maxPrice := route.MaxPriceGBP
	if maxPrice <= 0 {
		maxPrice = f.cfg.Discovery.MaxPriceGBP
	}
	if maxPrice > 0 && price > maxPrice {
		return nil, false
	}
	if !f.countryAllowed(route.DestinationCountry) {
		return nil, false
	}

	airline := strings.TrimSpace(offer.Owner.Name)
	if airline == "" {
		airline = "Unknown"
	}
	stops := offer.Stops()
	fp := fingerprint.Compute(route.OriginCity, route.DestinationCity, outDate, retDate, airline, stops)

	return map[string]string{
		deal.ColDealID:             newDealID(),
		deal.ColStatus:             string(deal.StatusNew),
		deal.ColFingerprint:        fp,
		deal.ColOriginIATA:         route.OriginIATA,
		deal.ColOriginCity:         route.OriginCity,
		deal.ColDestinationIATA:    route.DestinationIATA,
		deal.ColDestinationCity:    route.DestinationCity,
		deal.ColDestinationCountry: route.DestinationCountry,
		deal.ColOutboundDate:       outDate,
		deal.ColReturnDate:         retDate,
		deal.ColAirline:            airline,
		deal.ColStops:              strconv.Itoa(stops),
		deal.ColPriceGBP:           fmt.Sprintf("%.2f", price),
		deal.ColTheme:              route.Theme,
		deal.ColDiscoveredTS:       f.now().UTC().Format(time.RFC3339),
	}, true
}

func (f *Feeder) tripLengthOK(outDate, retDate string) bool {
	out, err := time.Parse("2006-01-02", outDate)
	if err != nil {
		return false
	}
	ret, err := time.Parse("2006-01-02", retDate)
	if err != nil {
		return false
	}
	days := int(ret.Sub(out).Hours() / 24)
	if days < 1 {
		return false
	}
	if f.cfg.Discovery.MinTripDays > 0 && days < f.cfg.Discovery.MinTripDays {
		return false
	}
	if f.cfg.Discovery.MaxTripDays > 0 && days > f.cfg.Discovery.MaxTripDays {
		return false
	}
	return true
}

func (f *Feeder) countryAllowed(country string) bool {
	if len(f.cfg.Discovery.CountryAllowlist) == 0 {
		return true
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	for _, allowed := range f.cfg.Discovery.CountryAllowlist {
		if country == allowed {
			return true
		}
	}
	return false
}

// newDealID returns a short random identifier, enough to address a row
// unambiguously without filling the cell with a full UUID.
func newDealID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// SetClock overrides the time source. Tests only.
func (f *Feeder) SetClock(now func() time.Time) {
	f.now = now
}
