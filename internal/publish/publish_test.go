package publish

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"farewire/internal/deal"
	"farewire/internal/services"
	"farewire/internal/testsupport"
)

type fakePublisher struct {
	mediaID  string
	err      error
	calls    int
	imageURL string
	caption  string
}

func (p *fakePublisher) Publish(_ context.Context, imageURL, caption string) (string, error) {
	p.calls++
	p.imageURL = imageURL
	p.caption = caption
	return p.mediaID, p.err
}

type fakeSender struct {
	messageID int64
	err       error
	calls     int
	chatID    string
	photoURL  string
	caption   string
}

func (s *fakeSender) SendPhoto(_ context.Context, chatID, photoURL, caption string) (int64, error) {
	s.calls++
	s.chatID = chatID
	s.photoURL = photoURL
	s.caption = caption
	return s.messageID, s.err
}

func (s *fakeSender) SendMessage(_ context.Context, chatID, text string) (int64, error) {
	s.calls++
	s.chatID = chatID
	s.caption = text
	return s.messageID, s.err
}

func publishableDeal(t *testing.T, fields map[string]string) *deal.Deal {
	t.Helper()
	base := map[string]string{
		deal.ColDealID:     "d1",
		deal.ColStatus:     "POSTING_INSTAGRAM",
		deal.ColImageURL:   "https://img.example/deal.png",
		deal.ColAICaption:  "FROM London TO Barcelona",
		deal.ColBookingURL: "https://deals.example/lhr/bcn/011026/051026/",
	}
	for k, v := range fields {
		base[k] = v
	}
	grid := testsupport.NewMemoryGrid(testsupport.DealHeaders, testsupport.DealRow(t, base))
	snap := testsupport.ReadSnapshot(t, grid)
	return deal.FromRecord(snap.Records[0])
}

func updatesByColumn(d *deal.Deal) map[string]string {
	out := map[string]string{}
	for _, w := range d.Updates() {
		out[w.Column] = w.Value
	}
	return out
}

func TestInstagramExecutePublishesAndStamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Instagram.Enabled = true
	publisher := &fakePublisher{mediaID: "media-9"}
	handler := NewInstagramHandler(cfg, publisher, nil)
	handler.now = func() time.Time {
		return time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	}
	d := publishableDeal(t, nil)

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if publisher.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", publisher.calls)
	}
	if publisher.imageURL != "https://img.example/deal.png" {
		t.Fatalf("image url = %q", publisher.imageURL)
	}
	updates := updatesByColumn(d)
	if updates[deal.ColInstagramMediaID] != "media-9" {
		t.Fatalf("media id = %q", updates[deal.ColInstagramMediaID])
	}
	if updates[deal.ColPostedInstagramTS] != "2026-10-01T09:30:00Z" {
		t.Fatalf("posted ts = %q", updates[deal.ColPostedInstagramTS])
	}
}

func TestInstagramSkipsRepost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Instagram.Enabled = true
	publisher := &fakePublisher{mediaID: "media-9"}
	handler := NewInstagramHandler(cfg, publisher, nil)
	d := publishableDeal(t, map[string]string{
		deal.ColPostedInstagramTS: "2026-09-30T12:00:00Z",
	})

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if publisher.calls != 0 {
		t.Fatalf("publisher called %d times, want 0", publisher.calls)
	}
	if len(d.Updates()) != 0 {
		t.Fatalf("unexpected writes %v", d.Updates())
	}
}

func TestInstagramDisabledPassesThrough(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Instagram.Enabled = false
	handler := NewInstagramHandler(cfg, nil, nil)
	d := publishableDeal(t, map[string]string{deal.ColImageURL: ""})

	if err := handler.Prepare(context.Background(), d); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(d.Updates()) != 0 {
		t.Fatalf("unexpected writes %v", d.Updates())
	}
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("disabled channel reported unhealthy: %s", health.Detail)
	}
}

func TestInstagramFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Instagram.Enabled = true
	publisher := &fakePublisher{err: errors.New("invalid token")}
	handler := NewInstagramHandler(cfg, publisher, nil)

	err := handler.Execute(context.Background(), publishableDeal(t, nil))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error %v is not transient", err)
	}
}

func TestInstagramPrepareRequiresCardAndCaption(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Instagram.Enabled = true
	handler := NewInstagramHandler(cfg, &fakePublisher{}, nil)

	for _, column := range []string{deal.ColImageURL, deal.ColAICaption} {
		err := handler.Prepare(context.Background(), publishableDeal(t, map[string]string{column: ""}))
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("missing %s: error %v is not a validation failure", column, err)
		}
	}
}

func TestTelegramFreePostsWithUpsell(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.FreeChannel = "@farewire"
	cfg.Publish.Telegram.VIPLink = "https://vip.example/join"
	sender := &fakeSender{messageID: 41}
	handler := NewTelegramFreeHandler(cfg, sender, nil)
	handler.now = func() time.Time {
		return time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	}
	d := publishableDeal(t, map[string]string{deal.ColStatus: "POSTING_TELEGRAM_FREE"})

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if sender.chatID != "@farewire" {
		t.Fatalf("chat id = %q", sender.chatID)
	}
	if sender.photoURL != "https://img.example/deal.png" {
		t.Fatalf("photo url = %q", sender.photoURL)
	}
	if !strings.HasPrefix(sender.caption, "FROM London TO Barcelona") {
		t.Fatalf("caption %q lost the rendered text", sender.caption)
	}
	if !strings.Contains(sender.caption, "https://vip.example/join") {
		t.Fatalf("caption %q missing VIP link", sender.caption)
	}
	updates := updatesByColumn(d)
	if updates[deal.ColTelegramFreeMessageID] != "41" {
		t.Fatalf("message id = %q", updates[deal.ColTelegramFreeMessageID])
	}
	if updates[deal.ColPostedTelegramFreeTS] != "2026-10-01T09:30:00Z" {
		t.Fatalf("posted ts = %q", updates[deal.ColPostedTelegramFreeTS])
	}
}

func TestTelegramFreeCaptionWithoutVIPLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.FreeChannel = "@farewire"
	cfg.Publish.Telegram.VIPLink = ""
	sender := &fakeSender{messageID: 41}
	handler := NewTelegramFreeHandler(cfg, sender, nil)
	d := publishableDeal(t, map[string]string{deal.ColStatus: "POSTING_TELEGRAM_FREE"})

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if sender.caption != "FROM London TO Barcelona" {
		t.Fatalf("caption = %q, want bare rendered text", sender.caption)
	}
}

func TestTelegramVIPPostsWithBookingLink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.VIPChannel = "-100200"
	sender := &fakeSender{messageID: 7}
	handler := NewTelegramVIPHandler(cfg, sender, nil)
	d := publishableDeal(t, map[string]string{deal.ColStatus: "POSTING_TELEGRAM_VIP"})

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if sender.chatID != "-100200" {
		t.Fatalf("chat id = %q", sender.chatID)
	}
	if !strings.Contains(sender.caption, "https://deals.example/lhr/bcn/011026/051026/") {
		t.Fatalf("caption %q missing booking link", sender.caption)
	}
	updates := updatesByColumn(d)
	if updates[deal.ColTelegramVIPMessageID] != "7" {
		t.Fatalf("message id = %q", updates[deal.ColTelegramVIPMessageID])
	}
	if updates[deal.ColPostedTelegramVIPTS] == "" {
		t.Fatal("posted ts not written")
	}
}

func TestTelegramSkipsRepost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.FreeChannel = "@farewire"
	sender := &fakeSender{messageID: 41}
	handler := NewTelegramFreeHandler(cfg, sender, nil)
	d := publishableDeal(t, map[string]string{
		deal.ColStatus:               "POSTING_TELEGRAM_FREE",
		deal.ColPostedTelegramFreeTS: "2026-09-30T12:00:00Z",
	})

	if err := handler.Execute(context.Background(), d); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("sender called %d times, want 0", sender.calls)
	}
	if len(d.Updates()) != 0 {
		t.Fatalf("unexpected writes %v", d.Updates())
	}
}

func TestTelegramFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.FreeChannel = "@farewire"
	sender := &fakeSender{err: errors.New("chat not found")}
	handler := NewTelegramFreeHandler(cfg, sender, nil)

	err := handler.Execute(context.Background(), publishableDeal(t, map[string]string{
		deal.ColStatus: "POSTING_TELEGRAM_FREE",
	}))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error %v is not transient", err)
	}
}

func TestTelegramHealthRequiresChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publish.Telegram.FreeChannel = ""
	handler := NewTelegramFreeHandler(cfg, &fakeSender{}, nil)

	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy stage for missing channel")
	}
	if health := NewTelegramFreeHandler(cfg, nil, nil).HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy stage for missing client")
	}
}
