package config

import "testing"

func TestFetchPolicyNormalize(t *testing.T) {
	cfg := FetchPolicyConfig{
		Allow:    []string{"Dec.ny.gov", "https://www.calrecycle.ca.gov/path"},
		Disallow: []string{"www.Tracker.test", "bad.test", "BAD.test"},
	}

	norm := cfg.Normalize()
	if len(norm.Allow) != 2 || norm.Allow[0] != "calrecycle.ca.gov" {
		t.Fatalf("unexpected allow list: %#v", norm.Allow)
	}
	if len(norm.Disallow) != 2 || norm.Disallow[0] != "bad.test" {
		t.Fatalf("unexpected disallow list: %#v", norm.Disallow)
	}
}

func TestFetchPolicyValidate(t *testing.T) {
	valid := FetchPolicyConfig{
		Allow:    []string{"dec.ny.gov"},
		Disallow: []string{"blocked.test"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	conflict := FetchPolicyConfig{
		Allow:    []string{"dec.ny.gov"},
		Disallow: []string{"dec.ny.gov"},
	}
	if err := conflict.Validate(); err == nil {
		t.Fatalf("expected conflict validation error")
	}
}

func TestFetchPolicyPermitsURL(t *testing.T) {
	open := FetchPolicyConfig{Disallow: []string{"blocked.test"}}
	if !open.PermitsURL("https://dec.ny.gov/chemical/8792.html") {
		t.Fatalf("open policy should permit unlisted hosts")
	}
	if open.PermitsURL("https://sub.blocked.test/page") {
		t.Fatalf("disallow should cover subdomains")
	}

	strict := FetchPolicyConfig{Allow: []string{"dec.ny.gov"}}
	if !strict.PermitsURL("https://www.dec.ny.gov/advisories") {
		t.Fatalf("allow list should permit listed host")
	}
	if strict.PermitsURL("https://epa.gov/recycle") {
		t.Fatalf("allow list should reject unlisted host")
	}
	if strict.PermitsURL("") {
		t.Fatalf("empty URL should be rejected")
	}
}
