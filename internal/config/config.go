package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Sheet configures the shared tabular store backend.
type Sheet struct {
	// Backend selects "sqlite" (local grid database) or "api" (remote grid
	// service).
	Backend       string `toml:"backend"`
	Tab           string `toml:"tab"`
	BaseURL       string `toml:"base_url"`
	APIToken      string `toml:"api_token"`
	SpreadsheetID string `toml:"spreadsheet_id"`
}

// Lease configures row claim behaviour.
type Lease struct {
	MaxLockAgeMinutes int `toml:"max_lock_age_minutes"`
	// VerifyClaims re-reads locked_by immediately after claiming and aborts
	// when another worker won the race. Narrows, does not eliminate, the
	// claim race window.
	VerifyClaims bool `toml:"verify_claims"`
}

// DeadLetter configures the failure ledger.
type DeadLetter struct {
	MaxFails      int    `toml:"max_fails"`
	DeadStatus    string `toml:"dead_status"`
	InputStatus   string `toml:"input_status"`
	MaxRowsPerRun int    `toml:"max_rows_per_run"`
}

// Route is one origin/destination pair the discovery stage searches.
type Route struct {
	OriginIATA         string  `toml:"origin_iata"`
	OriginCity         string  `toml:"origin_city"`
	DestinationIATA    string  `toml:"destination_iata"`
	DestinationCity    string  `toml:"destination_city"`
	DestinationCountry string  `toml:"destination_country"`
	Theme              string  `toml:"theme"`
	TripLengthDays     int     `toml:"trip_length_days"`
	MaxConnections     int     `toml:"max_connections"`
	CabinClass         string  `toml:"cabin_class"`
	MaxPriceGBP        float64 `toml:"max_price_gbp"`
}

// Discovery configures the deal discovery stage.
type Discovery struct {
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	Routes           []Route  `toml:"routes"`
	CountryAllowlist []string `toml:"country_allowlist"`
	// DaysAhead is how far in the future searched departures start.
	DaysAhead      int     `toml:"days_ahead"`
	MaxNewRows     int     `toml:"max_new_rows"`
	MaxPriceGBP    float64 `toml:"max_price_gbp"`
	MinTripDays    int     `toml:"min_trip_days"`
	MaxTripDays    int     `toml:"max_trip_days"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Scoring configures the scoring stage and its LLM collaborator.
type Scoring struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	PriceWeight    float64 `toml:"price_weight"`
	TimingWeight   float64 `toml:"timing_weight"`
	MaxRowsPerRun  int     `toml:"max_rows_per_run"`
}

// Enrich configures booking-link routing and caption building.
type Enrich struct {
	CheckoutBaseURL   string   `toml:"checkout_base_url"`
	SearchBaseURL     string   `toml:"search_base_url"`
	MaxCheckoutPrice  float64  `toml:"max_checkout_price_gbp"`
	CheckoutCountries []string `toml:"checkout_countries"`
	MaxRowsPerRun     int      `toml:"max_rows_per_run"`
}

// Render configures the promotional graphic collaborator.
type Render struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Instagram configures the instagram publishing channel.
type Instagram struct {
	Enabled           bool   `toml:"enabled"`
	AccessToken       string `toml:"access_token"`
	BusinessAccountID string `toml:"business_account_id"`
}

// Telegram configures the telegram publishing channels.
type Telegram struct {
	BotToken    string `toml:"bot_token"`
	FreeChannel string `toml:"free_channel"`
	VIPChannel  string `toml:"vip_channel"`
	VIPLink     string `toml:"vip_link"`
}

// Publish groups the social channels.
type Publish struct {
	Instagram      Instagram `toml:"instagram"`
	Telegram       Telegram  `toml:"telegram"`
	TimeoutSeconds int       `toml:"timeout_seconds"`
}

// Notify configures the ops alert webhook.
type Notify struct {
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Runner contains cross-stage runner settings.
type Runner struct {
	// WorkerID overrides the derived hostname-based worker identity.
	WorkerID string `toml:"worker_id"`
}

// Config encapsulates all configuration values for farewire.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Sheet: shared tabular store backend (sqlite or remote grid API)
//   - Lease: claim max age and verification
//   - DeadLetter: retry budget and sweep bounds
//   - Discovery/Scoring/Enrich/Render/Publish: per-stage collaborators
//   - Notify: ops alert webhook
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Sheet      Sheet      `toml:"sheet"`
	Lease      Lease      `toml:"lease"`
	DeadLetter DeadLetter `toml:"dead_letter"`
	Discovery  Discovery  `toml:"discovery"`
	Scoring    Scoring    `toml:"scoring"`
	Enrich     Enrich     `toml:"enrich"`
	Render     Render     `toml:"render"`
	Publish    Publish    `toml:"publish"`
	Notify     Notify     `toml:"notify"`
	Logging    Logging    `toml:"logging"`
	Runner     Runner     `toml:"runner"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/farewire/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, normalizes, and validates a configuration file. A
// .env file in the working directory is folded into the environment before
// overrides are applied.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("farewire.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// applyEnvOverrides folds deployment environment variables over file values.
// Only secrets and deployment identity come from the environment; tuning
// stays in the TOML file.
func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SPREADSHEET_ID", &c.Sheet.SpreadsheetID},
		{"SHEET_API_TOKEN", &c.Sheet.APIToken},
		{"SHEET_BASE_URL", &c.Sheet.BaseURL},
		{"DEALS_TAB", &c.Sheet.Tab},
		{"FLIGHT_SEARCH_API_KEY", &c.Discovery.APIKey},
		{"SCORING_API_KEY", &c.Scoring.APIKey},
		{"RENDER_URL", &c.Render.URL},
		{"INSTAGRAM_ACCESS_TOKEN", &c.Publish.Instagram.AccessToken},
		{"INSTAGRAM_BUSINESS_ID", &c.Publish.Instagram.BusinessAccountID},
		{"TELEGRAM_BOT_TOKEN", &c.Publish.Telegram.BotToken},
		{"NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL},
		{"WORKER_ID", &c.Runner.WorkerID},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GridDBPath returns the SQLite grid location under the data directory.
func (c *Config) GridDBPath() string {
	return filepath.Join(c.Paths.DataDir, "grid.db")
}

// LockPath returns the flock path guarding one stage runner.
func (c *Config) LockPath(stage string) string {
	return filepath.Join(c.Paths.DataDir, stage+".lock")
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
