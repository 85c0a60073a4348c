package config

const (
	defaultDataDir            = "~/.local/share/farewire"
	defaultLogDir             = "~/.local/share/farewire/logs"
	defaultSheetBackend       = "sqlite"
	defaultSheetTab           = "RAW_DEALS"
	defaultMaxLockAgeMinutes  = 30
	defaultMaxFails           = 3
	defaultDeadStatus         = "ERROR_HARD"
	defaultDeadInputStatus    = "ERROR"
	defaultDeadMaxRowsPerRun  = 5
	defaultDiscoveryBaseURL   = "https://api.duffel.com/air"
	defaultDiscoveryDaysAhead = 30
	defaultDiscoveryMaxRows   = 10
	defaultDiscoveryMaxPrice  = 220.0
	defaultMinTripDays        = 2
	defaultMaxTripDays        = 10
	defaultDiscoveryTimeout   = 60
	defaultScoringBaseURL     = "https://api.deepseek.com"
	defaultScoringModel       = "deepseek-chat"
	defaultScoringTimeout     = 45
	defaultPriceWeight        = 0.6
	defaultTimingWeight       = 0.4
	defaultScoringMaxRows     = 10
	defaultEnrichSearchBase   = "https://www.skyscanner.net/transport/flights"
	defaultEnrichMaxRows      = 12
	defaultRenderTimeout      = 60
	defaultPublishTimeout     = 30
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
)

var defaultCheckoutCountries = []string{
	"ICELAND", "IRELAND", "FRANCE", "SPAIN", "PORTUGAL", "ITALY", "GERMANY",
	"NETHERLANDS", "BELGIUM", "DENMARK", "NORWAY", "SWEDEN", "FINLAND",
	"POLAND", "CZECHIA", "AUSTRIA", "SWITZERLAND", "HUNGARY", "GREECE",
	"CROATIA", "SLOVENIA", "SLOVAKIA", "BULGARIA", "ROMANIA", "LITHUANIA",
	"LATVIA", "ESTONIA", "MALTA", "CYPRUS", "TURKEY", "MOROCCO", "EGYPT",
	"TUNISIA",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Sheet: Sheet{
			Backend: defaultSheetBackend,
			Tab:     defaultSheetTab,
		},
		Lease: Lease{
			MaxLockAgeMinutes: defaultMaxLockAgeMinutes,
			VerifyClaims:      true,
		},
		DeadLetter: DeadLetter{
			MaxFails:      defaultMaxFails,
			DeadStatus:    defaultDeadStatus,
			InputStatus:   defaultDeadInputStatus,
			MaxRowsPerRun: defaultDeadMaxRowsPerRun,
		},
		Discovery: Discovery{
			BaseURL:          defaultDiscoveryBaseURL,
			CountryAllowlist: append([]string(nil), defaultCheckoutCountries...),
			DaysAhead:        defaultDiscoveryDaysAhead,
			MaxNewRows:       defaultDiscoveryMaxRows,
			MaxPriceGBP:      defaultDiscoveryMaxPrice,
			MinTripDays:      defaultMinTripDays,
			MaxTripDays:      defaultMaxTripDays,
			TimeoutSeconds:   defaultDiscoveryTimeout,
		},
		Scoring: Scoring{
			BaseURL:        defaultScoringBaseURL,
			Model:          defaultScoringModel,
			TimeoutSeconds: defaultScoringTimeout,
			PriceWeight:    defaultPriceWeight,
			TimingWeight:   defaultTimingWeight,
			MaxRowsPerRun:  defaultScoringMaxRows,
		},
		Enrich: Enrich{
			SearchBaseURL:     defaultEnrichSearchBase,
			MaxCheckoutPrice:  defaultDiscoveryMaxPrice,
			CheckoutCountries: append([]string(nil), defaultCheckoutCountries...),
			MaxRowsPerRun:     defaultEnrichMaxRows,
		},
		Render: Render{
			TimeoutSeconds: defaultRenderTimeout,
		},
		Publish: Publish{
			TimeoutSeconds: defaultPublishTimeout,
		},
		Notify: Notify{
			TimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
