package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/discovery/duffel"
	"farewire/internal/fingerprint"
	"farewire/internal/sheet"
	"farewire/internal/testsupport"
)

type fakeSearcher struct {
	offers map[string][]duffel.Offer
	err    error
}

func (s *fakeSearcher) Search(_ context.Context, q duffel.Query) ([]duffel.Offer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.offers[q.Origin+"-"+q.Destination], nil
}

func offer(amount, currency, airline, outAt, retAt string, outSegs, retSegs int) duffel.Offer {
	var o duffel.Offer
	o.TotalAmount = amount
	o.TotalCurrency = currency
	o.Owner.Name = airline
	out := duffel.Slice{}
	for i := 0; i < outSegs; i++ {
		out.Segments = append(out.Segments, duffel.Segment{DepartingAt: outAt + "T08:00:00Z"})
	}
	ret := duffel.Slice{}
	for i := 0; i < retSegs; i++ {
		ret.Segments = append(ret.Segments, duffel.Segment{DepartingAt: retAt + "T18:00:00Z"})
	}
	o.Slices = []duffel.Slice{out, ret}
	return o
}

func barcelonaRoute() config.Route {
	return config.Route{
		OriginIATA: "LHR", OriginCity: "London",
		DestinationIATA: "BCN", DestinationCity: "Barcelona",
		DestinationCountry: "SPAIN", Theme: "city_breaks",
		TripLengthDays: 4, MaxPriceGBP: 150,
	}
}

func newFeeder(t *testing.T, grid *testsupport.MemoryGrid, searcher duffel.Searcher, routes ...config.Route) *Feeder {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Discovery.Routes = routes
	f := NewFeeder(cfg, sheet.NewAdapter(grid), searcher, nil)
	f.SetClock(func() time.Time {
		return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	})
	return f
}

func TestRunAppendsNewDeals(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders)
	searcher := &fakeSearcher{offers: map[string][]duffel.Offer{
		"LHR-BCN": {offer("89.99", "GBP", "Vueling", "2026-10-01", "2026-10-05", 1, 1)},
	}}
	f := newFeeder(t, grid, searcher, barcelonaRoute())

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("inserted = %d, want 1", res.Inserted)
	}

	snap := testsupport.ReadSnapshot(t, grid)
	if len(snap.Records) != 1 {
		t.Fatalf("expected 1 row, got %d", len(snap.Records))
	}
	rec := snap.Records[0]
	if rec.Get(deal.ColStatus) != "NEW" {
		t.Fatalf("status = %q, want NEW", rec.Get(deal.ColStatus))
	}
	if rec.Get(deal.ColPriceGBP) != "89.99" {
		t.Fatalf("price = %q, want 89.99", rec.Get(deal.ColPriceGBP))
	}
	if rec.Get(deal.ColStops) != "0" {
		t.Fatalf("stops = %q, want 0", rec.Get(deal.ColStops))
	}
	if len(rec.Get(deal.ColDealID)) != 12 {
		t.Fatalf("deal_id %q should be 12 chars", rec.Get(deal.ColDealID))
	}
	want := fingerprint.Compute("London", "Barcelona", "2026-10-01", "2026-10-05", "Vueling", 0)
	if rec.Get(deal.ColFingerprint) != want {
		t.Fatalf("fingerprint = %q, want %q", rec.Get(deal.ColFingerprint), want)
	}
}

func TestRunSkipsKnownFingerprints(t *testing.T) {
	fp := fingerprint.Compute("London", "Barcelona", "2026-10-01", "2026-10-05", "Vueling", 0)
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders,
		testsupport.DealRow(t, map[string]string{
			deal.ColDealID: "existing", deal.ColStatus: "SCORED", deal.ColFingerprint: fp,
		}),
	)
	searcher := &fakeSearcher{offers: map[string][]duffel.Offer{
		"LHR-BCN": {offer("89.99", "GBP", "Vueling", "2026-10-01", "2026-10-05", 1, 1)},
	}}
	f := newFeeder(t, grid, searcher, barcelonaRoute())

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 0 || res.Duplicates != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if grid.RowCount() != 2 {
		t.Fatalf("row count = %d, want 2", grid.RowCount())
	}
}

func TestRunFiltersOffers(t *testing.T) {
	searcher := &fakeSearcher{offers: map[string][]duffel.Offer{
		"LHR-BCN": {
			offer("89.99", "EUR", "Vueling", "2026-10-01", "2026-10-05", 1, 1),
			offer("500.00", "GBP", "Vueling", "2026-10-01", "2026-10-05", 1, 1),
			offer("89.99", "GBP", "Vueling", "2026-10-01", "2026-10-02", 1, 1),
			offer("89.99", "GBP", "Vueling", "2026-10-01", "2026-11-20", 1, 1),
		},
	}}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders)
	f := newFeeder(t, grid, searcher, barcelonaRoute())

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 0 {
		t.Fatalf("inserted = %d, want 0", res.Inserted)
	}
	// Wrong currency, over price, too short, too long.
	if res.Filtered != 4 {
		t.Fatalf("filtered = %d, want 4", res.Filtered)
	}
}

func TestRunRejectsDisallowedCountry(t *testing.T) {
	route := barcelonaRoute()
	route.DestinationCountry = "NARNIA"
	searcher := &fakeSearcher{offers: map[string][]duffel.Offer{
		"LHR-BCN": {offer("89.99", "GBP", "Vueling", "2026-10-01", "2026-10-05", 1, 1)},
	}}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders)
	f := newFeeder(t, grid, searcher, route)

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 0 || res.Filtered != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunContinuesPastFailedRoute(t *testing.T) {
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders)
	f := newFeeder(t, grid, &fakeSearcher{err: errors.New("duffel down")}, barcelonaRoute())

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("route failure must not abort the run: %v", err)
	}
	if res.Searched != 1 || res.Inserted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunHonorsInsertBudget(t *testing.T) {
	offers := make([]duffel.Offer, 0, 6)
	for day := 1; day <= 6; day++ {
		out := time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		ret := time.Date(2026, 10, day+4, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		offers = append(offers, offer("89.99", "GBP", "Vueling", out, ret, 1, 1))
	}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders)
	searcher := &fakeSearcher{offers: map[string][]duffel.Offer{"LHR-BCN": offers}}
	f := newFeeder(t, grid, searcher, barcelonaRoute())
	f.cfg.Discovery.MaxNewRows = 3

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 3 {
		t.Fatalf("inserted = %d, want 3", res.Inserted)
	}
}
