package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSheet()
	c.normalizeStatuses()
	c.normalizeLists()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSheet() {
	c.Sheet.Backend = strings.ToLower(strings.TrimSpace(c.Sheet.Backend))
	if c.Sheet.Backend == "" {
		c.Sheet.Backend = defaultSheetBackend
	}
	c.Sheet.Tab = strings.TrimSpace(c.Sheet.Tab)
	if c.Sheet.Tab == "" {
		c.Sheet.Tab = defaultSheetTab
	}
	c.Sheet.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sheet.BaseURL), "/")
}

func (c *Config) normalizeStatuses() {
	c.DeadLetter.DeadStatus = strings.ToUpper(strings.TrimSpace(c.DeadLetter.DeadStatus))
	if c.DeadLetter.DeadStatus == "" {
		c.DeadLetter.DeadStatus = defaultDeadStatus
	}
	c.DeadLetter.InputStatus = strings.ToUpper(strings.TrimSpace(c.DeadLetter.InputStatus))
	if c.DeadLetter.InputStatus == "" {
		c.DeadLetter.InputStatus = defaultDeadInputStatus
	}
}

func (c *Config) normalizeLists() {
	c.Discovery.CountryAllowlist = upperTrimmed(c.Discovery.CountryAllowlist)
	c.Enrich.CheckoutCountries = upperTrimmed(c.Enrich.CheckoutCountries)
	for i := range c.Discovery.Routes {
		r := &c.Discovery.Routes[i]
		r.OriginIATA = strings.ToUpper(strings.TrimSpace(r.OriginIATA))
		r.DestinationIATA = strings.ToUpper(strings.TrimSpace(r.DestinationIATA))
		r.OriginCity = strings.TrimSpace(r.OriginCity)
		r.DestinationCity = strings.TrimSpace(r.DestinationCity)
		r.DestinationCountry = strings.ToUpper(strings.TrimSpace(r.DestinationCountry))
		r.Theme = strings.ToLower(strings.TrimSpace(r.Theme))
		r.CabinClass = strings.ToLower(strings.TrimSpace(r.CabinClass))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func upperTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
