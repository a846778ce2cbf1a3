package config

import (
	"testing"
	"time"
)

func TestAdvisoryNormalize(t *testing.T) {
	cfg := AdvisoryConfig{
		Sources: []AdvisorySourceConfig{
			{State: " ny ", WasteType: "E-Waste", URL: " https://dec.ny.gov/ewaste "},
			{State: "", WasteType: "medical", URL: "https://example.test"},
			{State: "CA", WasteType: "hazardous", URL: ""},
		},
	}

	norm := cfg.Normalize()
	if norm.Timeout != 45*time.Second {
		t.Fatalf("expected default timeout, got %v", norm.Timeout)
	}
	if len(norm.Sources) != 1 {
		t.Fatalf("expected 1 surviving source, got %d", len(norm.Sources))
	}
	src := norm.Sources[0]
	if src.State != "NY" || src.WasteType != "e-waste" || src.URL != "https://dec.ny.gov/ewaste" {
		t.Fatalf("unexpected normalized source: %#v", src)
	}
}

func TestAdvisoryValidate(t *testing.T) {
	disabled := AdvisoryConfig{}
	if err := disabled.Validate(); err != nil {
		t.Fatalf("disabled advisory should validate: %v", err)
	}

	enabledEmpty := AdvisoryConfig{Enabled: true}
	if err := enabledEmpty.Validate(); err == nil {
		t.Fatalf("expected error for enabled advisory without sources")
	}

	badURL := AdvisoryConfig{
		Enabled: true,
		Sources: []AdvisorySourceConfig{{State: "NY", WasteType: "e-waste", URL: "dec.ny.gov/ewaste"}},
	}
	if err := badURL.Validate(); err == nil {
		t.Fatalf("expected error for source url without scheme")
	}
}

func TestSchedulerNormalize(t *testing.T) {
	norm := SchedulerConfig{}.Normalize()
	if norm.AdvisoryRefreshCron == "" || norm.RetentionCron == "" {
		t.Fatalf("expected default cron expressions, got %#v", norm)
	}
	if norm.RetentionDays != 90 {
		t.Fatalf("expected default retention days, got %d", norm.RetentionDays)
	}
	if norm.LockTTL != 2*time.Minute {
		t.Fatalf("expected default lock ttl, got %v", norm.LockTTL)
	}
}

func TestSchedulerValidate(t *testing.T) {
	valid := SchedulerConfig{Enabled: true}.Normalize()
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	invalid := SchedulerConfig{Enabled: true, AdvisoryRefreshCron: "not a cron", RetentionCron: "30 4 * * *"}
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}

	disabled := SchedulerConfig{AdvisoryRefreshCron: "garbage"}
	if err := disabled.Validate(); err != nil {
		t.Fatalf("disabled scheduler should skip cron validation: %v", err)
	}
}
