package deal

// Column names form the store's external schema contract. Required lists are
// declared per stage and validated once at stage start.
const (
	ColDealID        = "deal_id"
	ColStatus        = "status"
	ColLockTimestamp = "processing_lock"
	ColLockedBy      = "locked_by"
	ColRetryStatus   = "retry_status"
	ColFailCount     = "fail_count"
	ColLastError     = "last_error"
	ColLastAttemptTS = "last_attempt_ts"
	ColFingerprint   = "deal_fingerprint"

	ColOriginIATA         = "origin_iata"
	ColOriginCity         = "origin_city"
	ColDestinationIATA    = "destination_iata"
	ColDestinationCity    = "destination_city"
	ColDestinationCountry = "destination_country"
	ColOutboundDate       = "outbound_date"
	ColReturnDate         = "return_date"
	ColAirline            = "airline"
	ColStops              = "stops"
	ColPriceGBP           = "price_gbp"
	ColTheme              = "theme"
	ColDiscoveredTS       = "discovered_ts"

	ColAIScore     = "ai_score"
	ColAICategory  = "ai_category"
	ColPriceScore  = "price_score"
	ColTimingScore = "timing_score"
	ColAICaption   = "ai_caption"

	ColBookingURL = "booking_url"
	ColImageURL   = "image_url"

	ColPostedInstagramTS     = "posted_instagram_ts"
	ColInstagramMediaID      = "instagram_media_id"
	ColPostedTelegramFreeTS  = "posted_telegram_free_ts"
	ColTelegramFreeMessageID = "telegram_free_message_id"
	ColPostedTelegramVIPTS   = "posted_telegram_vip_ts"
	ColTelegramVIPMessageID  = "telegram_vip_message_id"
)

// LeaseColumns are required by every claiming stage.
var LeaseColumns = []string{ColDealID, ColStatus, ColLockTimestamp, ColLockedBy}

// AllColumns is the full store schema in canonical order, used to seed a
// fresh local grid.
var AllColumns = []string{
	ColDealID, ColStatus, ColLockTimestamp, ColLockedBy,
	ColRetryStatus, ColFailCount, ColLastError, ColLastAttemptTS,
	ColFingerprint, ColOriginIATA, ColOriginCity,
	ColDestinationIATA, ColDestinationCity, ColDestinationCountry,
	ColOutboundDate, ColReturnDate, ColAirline, ColStops,
	ColPriceGBP, ColTheme, ColDiscoveredTS,
	ColAIScore, ColAICategory, ColPriceScore, ColTimingScore,
	ColAICaption, ColBookingURL, ColImageURL,
	ColPostedInstagramTS, ColInstagramMediaID,
	ColPostedTelegramFreeTS, ColTelegramFreeMessageID,
	ColPostedTelegramVIPTS, ColTelegramVIPMessageID,
}

// PayloadColumns are the business fields required by the scoring, enrich,
// and render stages.
var PayloadColumns = []string{
	ColOriginIATA, ColOriginCity, ColDestinationIATA, ColDestinationCity,
	ColDestinationCountry, ColOutboundDate, ColReturnDate, ColAirline,
	ColStops, ColPriceGBP,
}
