// Package publish implements the three channel stages that take a rendered
// deal through instagram, the free telegram channel, and the VIP telegram
// channel. Each channel is its own stage so a crash mid-fanout resumes at
// the channel that was interrupted.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"farewire/internal/config"
	"farewire/internal/deal"
	"farewire/internal/logging"
	"farewire/internal/publish/instagram"
	"farewire/internal/publish/telegram"
	"farewire/internal/services"
	"farewire/internal/stage"
)

// InstagramHandler posts the rendered card to the instagram business
// account.
type InstagramHandler struct {
	cfg       *config.Config
	publisher instagram.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ stage.Handler = (*InstagramHandler)(nil)

// NewInstagramHandler builds the instagram stage. The publisher may be nil
// when the channel is disabled.
func NewInstagramHandler(cfg *config.Config, publisher instagram.Publisher, logger *slog.Logger) *InstagramHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &InstagramHandler{
		cfg:       cfg,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "publish-instagram"),
		now:       time.Now,
	}
}

// SetLogger installs the run-scoped logger.
func (h *InstagramHandler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// HealthCheck verifies the publisher is wired when the channel is enabled.
func (h *InstagramHandler) HealthCheck(context.Context) stage.Health {
	if h.cfg.Publish.Instagram.Enabled && h.publisher == nil {
		return stage.Unhealthy("publish-instagram", "instagram client not configured")
	}
	return stage.Healthy("publish-instagram")
}

// Prepare rejects rows missing the card or caption. Disabled channels skip
// validation because Execute will pass the row through untouched.
func (h *InstagramHandler) Prepare(_ context.Context, d *deal.Deal) error {
	if !h.cfg.Publish.Instagram.Enabled {
		return nil
	}
	return requirePublishFields(d, "publish-instagram")
}

// Execute publishes the card, or skips the API when the channel is disabled
// or the row already carries a posted timestamp.
func (h *InstagramHandler) Execute(ctx context.Context, d *deal.Deal) error {
	if !h.cfg.Publish.Instagram.Enabled {
		h.logger.Info("instagram channel disabled, passing deal through",
			logging.String(logging.FieldDealID, d.ID))
		return nil
	}
	if ts := strings.TrimSpace(d.Get(deal.ColPostedInstagramTS)); ts != "" {
		h.logger.Warn("deal already posted to instagram, skipping repost",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("posted_ts", ts))
		return nil
	}

	mediaID, err := h.publisher.Publish(ctx, d.Get(deal.ColImageURL), d.Get(deal.ColAICaption))
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish-instagram", "publish media", "", err)
	}

	d.Set(deal.ColInstagramMediaID, mediaID)
	d.Set(deal.ColPostedInstagramTS, h.now().UTC().Format(time.RFC3339))
	h.logger.Info("deal posted to instagram",
		logging.String(logging.FieldDealID, d.ID),
		logging.String("media_id", mediaID))
	return nil
}

// TelegramHandler posts a deal to one telegram channel. The free channel
// gets the card photo with an upsell footer; the VIP channel gets the card
// photo with the booking link.
type TelegramHandler struct {
	cfg    *config.Config
	sender telegram.Sender
	logger *slog.Logger
	now    func() time.Time

	name     string
	chatID   func(*config.Config) string
	caption  func(*config.Config, *deal.Deal) string
	tsColumn string
	idColumn string
}

var _ stage.Handler = (*TelegramHandler)(nil)

// NewTelegramFreeHandler builds the free-channel stage.
func NewTelegramFreeHandler(cfg *config.Config, sender telegram.Sender, logger *slog.Logger) *TelegramHandler {
	return newTelegramHandler(cfg, sender, logger, "publish-telegram-free",
		func(c *config.Config) string { return c.Publish.Telegram.FreeChannel },
		freeCaption, deal.ColPostedTelegramFreeTS, deal.ColTelegramFreeMessageID)
}

// NewTelegramVIPHandler builds the VIP-channel stage.
func NewTelegramVIPHandler(cfg *config.Config, sender telegram.Sender, logger *slog.Logger) *TelegramHandler {
	return newTelegramHandler(cfg, sender, logger, "publish-telegram-vip",
		func(c *config.Config) string { return c.Publish.Telegram.VIPChannel },
		vipCaption, deal.ColPostedTelegramVIPTS, deal.ColTelegramVIPMessageID)
}

func newTelegramHandler(cfg *config.Config, sender telegram.Sender, logger *slog.Logger, name string,
	chatID func(*config.Config) string, caption func(*config.Config, *deal.Deal) string,
	tsColumn, idColumn string) *TelegramHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TelegramHandler{
		cfg:      cfg,
		sender:   sender,
		logger:   logging.NewComponentLogger(logger, name),
		now:      time.Now,
		name:     name,
		chatID:   chatID,
		caption:  caption,
		tsColumn: tsColumn,
		idColumn: idColumn,
	}
}

// SetLogger installs the run-scoped logger.
func (h *TelegramHandler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// HealthCheck verifies the bot client and target channel are configured.
func (h *TelegramHandler) HealthCheck(context.Context) stage.Health {
	if h.sender == nil {
		return stage.Unhealthy(h.name, "telegram client not configured")
	}
	if strings.TrimSpace(h.chatID(h.cfg)) == "" {
		return stage.Unhealthy(h.name, "telegram channel not configured")
	}
	return stage.Healthy(h.name)
}

// Prepare rejects rows missing the card or caption.
func (h *TelegramHandler) Prepare(_ context.Context, d *deal.Deal) error {
	return requirePublishFields(d, h.name)
}

// Execute posts the card photo, skipping the API when the row already
// carries a posted timestamp for this channel.
func (h *TelegramHandler) Execute(ctx context.Context, d *deal.Deal) error {
	if ts := strings.TrimSpace(d.Get(h.tsColumn)); ts != "" {
		h.logger.Warn("deal already posted to channel, skipping repost",
			logging.String(logging.FieldDealID, d.ID),
			logging.String("posted_ts", ts))
		return nil
	}

	messageID, err := h.sender.SendPhoto(ctx, h.chatID(h.cfg), d.Get(deal.ColImageURL), h.caption(h.cfg, d))
	if err != nil {
		return services.Wrap(services.ErrTransient, h.name, "send photo", "", err)
	}

	d.Set(h.idColumn, strconv.FormatInt(messageID, 10))
	d.Set(h.tsColumn, h.now().UTC().Format(time.RFC3339))
	h.logger.Info("deal posted to telegram",
		logging.String(logging.FieldDealID, d.ID),
		logging.String("channel", h.chatID(h.cfg)),
		logging.String("message_id", strconv.FormatInt(messageID, 10)))
	return nil
}

// freeCaption appends the VIP upsell footer to the rendered caption when a
// join link is configured.
func freeCaption(cfg *config.Config, d *deal.Deal) string {
	caption := strings.TrimSpace(d.Get(deal.ColAICaption))
	link := strings.TrimSpace(cfg.Publish.Telegram.VIPLink)
	if link == "" {
		return caption
	}
	return caption + "\n\nWant deals like this as soon as we find them?\nJoin VIP: " + link
}

// vipCaption appends the booking link so VIP members can act on the deal
// directly.
func vipCaption(_ *config.Config, d *deal.Deal) string {
	caption := strings.TrimSpace(d.Get(deal.ColAICaption))
	link := strings.TrimSpace(d.Get(deal.ColBookingURL))
	if link == "" {
		return caption
	}
	return caption + "\n\nBook now: " + link
}

func requirePublishFields(d *deal.Deal, stageName string) error {
	if strings.TrimSpace(d.Get(deal.ColImageURL)) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			fmt.Sprintf("deal %s has no rendered card", d.ID), nil)
	}
	if strings.TrimSpace(d.Get(deal.ColAICaption)) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			fmt.Sprintf("deal %s has no caption", d.ID), nil)
	}
	return nil
}
