package render

import (
	"context"
	"errors"
	"testing"

	"farewire/internal/deal"
	"farewire/internal/render/renderapi"
	"farewire/internal/services"
	"farewire/internal/testsupport"
)

type fakeRenderer struct {
	imageURL string
	err      error
	last     renderapi.Payload
}

func (r *fakeRenderer) Render(_ context.Context, p renderapi.Payload) (string, error) {
	r.last = p
	return r.imageURL, r.err
}

func renderDeal(t *testing.T, overrides map[string]string) *deal.Deal {
	t.Helper()
	base := map[string]string{
		deal.ColDealID:          "d1",
		deal.ColStatus:          "RENDERING",
		deal.ColOriginCity:      "London",
		deal.ColDestinationCity: "Barcelona",
		deal.ColOutboundDate:    "2026-10-01",
		deal.ColReturnDate:      "2026-10-05",
		deal.ColPriceGBP:        "89.01",
	}
	for k, v := range overrides {
		base[k] = v
	}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders, testsupport.DealRow(t, base))
	snap := testsupport.ReadSnapshot(t, grid)
	return deal.FromRecord(snap.Records[0])
}

func TestExecuteRendersCard(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := &fakeRenderer{imageURL: "https://img.example.net/card.png"}
	h := NewHandler(cfg, renderer, nil)
	d := renderDeal(t, nil)

	if err := h.Execute(context.Background(), d); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if renderer.last.To != "Barcelona" || renderer.last.From != "London" {
		t.Fatalf("payload cities = %q/%q", renderer.last.To, renderer.last.From)
	}
	if renderer.last.Out != "011026" || renderer.last.In != "051026" {
		t.Fatalf("payload dates = %q/%q", renderer.last.Out, renderer.last.In)
	}
	// Prices round up so the card never understates.
	if renderer.last.Price != "£90" {
		t.Fatalf("payload price = %q, want £90", renderer.last.Price)
	}

	var imageURL string
	for _, w := range d.Updates() {
		if w.Column == deal.ColImageURL {
			imageURL = w.Value
		}
	}
	if imageURL != "https://img.example.net/card.png" {
		t.Fatalf("image_url update = %q", imageURL)
	}
}

func TestExecuteSurfacesRendererFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := NewHandler(cfg, &fakeRenderer{err: errors.New("renderer 503")}, nil)
	d := renderDeal(t, nil)

	if err := h.Execute(context.Background(), d); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPrepareValidatesCardFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := NewHandler(cfg, &fakeRenderer{}, nil)

	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{"missing destination", map[string]string{deal.ColDestinationCity: ""}},
		{"missing price", map[string]string{deal.ColPriceGBP: ""}},
		{"garbage dates", map[string]string{deal.ColOutboundDate: "soon"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := renderDeal(t, tc.overrides)
			if err := h.Prepare(context.Background(), d); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
