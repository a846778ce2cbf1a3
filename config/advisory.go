package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Normalize cleans advisory sources and applies defaults.
func (c AdvisoryConfig) Normalize() AdvisoryConfig {
	cfg := c
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	var sources []AdvisorySourceConfig
	for _, src := range cfg.Sources {
		src.State = strings.ToUpper(strings.TrimSpace(src.State))
		src.WasteType = strings.ToLower(strings.TrimSpace(src.WasteType))
		src.URL = strings.TrimSpace(src.URL)
		if src.State == "" || src.URL == "" {
			continue
		}
		sources = append(sources, src)
	}
	cfg.Sources = sources
	cfg.Policy = cfg.Policy.Normalize()
	return cfg
}

// Validate ensures advisory settings are internally consistent.
func (c AdvisoryConfig) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("advisory.sources required when advisory fetching is enabled")
	}
	for _, src := range c.Sources {
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			return fmt.Errorf("advisory source for %s has invalid url %q", src.State, src.URL)
		}
	}
	return nil
}

// Normalize applies defaults for unset scheduler values.
func (c SchedulerConfig) Normalize() SchedulerConfig {
	cfg := c
	if strings.TrimSpace(cfg.AdvisoryRefreshCron) == "" {
		cfg.AdvisoryRefreshCron = "0 3 * * *"
	}
	if strings.TrimSpace(cfg.RetentionCron) == "" {
		cfg.RetentionCron = "30 4 * * *"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.MaxStartupDelay < 0 {
		cfg.MaxStartupDelay = 0
	}
	return cfg
}

// Validate checks that the cron expressions parse.
func (c SchedulerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cronexpr.Parse(c.AdvisoryRefreshCron); err != nil {
		return fmt.Errorf("scheduler.advisory_refresh_cron invalid: %w", err)
	}
	if _, err := cronexpr.Parse(c.RetentionCron); err != nil {
		return fmt.Errorf("scheduler.retention_cron invalid: %w", err)
	}
	return nil
}
