package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSheet(); err != nil {
		return err
	}
	if err := c.validateLease(); err != nil {
		return err
	}
	if err := c.validateDeadLetter(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSheet() error {
	switch c.Sheet.Backend {
	case "sqlite":
		if c.Paths.DataDir == "" {
			return errors.New("paths.data_dir must be set for the sqlite backend")
		}
	case "api":
		if c.Sheet.BaseURL == "" {
			return errors.New("sheet.base_url is required for the api backend")
		}
		if c.Sheet.SpreadsheetID == "" {
			return errors.New("sheet.spreadsheet_id is required for the api backend. Set SPREADSHEET_ID or edit the config file")
		}
	default:
		return fmt.Errorf("sheet.backend: unsupported value %q (expected sqlite or api)", c.Sheet.Backend)
	}
	return nil
}

func (c *Config) validateLease() error {
	if c.Lease.MaxLockAgeMinutes <= 0 {
		return errors.New("lease.max_lock_age_minutes must be positive")
	}
	return nil
}

func (c *Config) validateDeadLetter() error {
	if c.DeadLetter.MaxFails <= 0 {
		return errors.New("dead_letter.max_fails must be positive")
	}
	if c.DeadLetter.MaxRowsPerRun <= 0 {
		return errors.New("dead_letter.max_rows_per_run must be positive")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if c.Discovery.MaxNewRows <= 0 {
		return errors.New("discovery.max_new_rows must be positive")
	}
	if c.Discovery.MinTripDays > c.Discovery.MaxTripDays {
		return errors.New("discovery.min_trip_days must not exceed discovery.max_trip_days")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.PriceWeight < 0 || c.Scoring.TimingWeight < 0 {
		return errors.New("scoring weights must not be negative")
	}
	if c.Scoring.PriceWeight+c.Scoring.TimingWeight == 0 {
		return errors.New("at least one scoring weight must be positive")
	}
	if c.Scoring.MaxRowsPerRun <= 0 {
		return errors.New("scoring.max_rows_per_run must be positive")
	}
	return nil
}
