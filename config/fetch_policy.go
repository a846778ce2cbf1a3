package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FetchPolicyConfig restricts which hosts the advisory fetcher may visit.
// An empty allow list permits any host that is not disallowed.
type FetchPolicyConfig struct {
	Allow    []string `mapstructure:"allow"`
	Disallow []string `mapstructure:"disallow"`
}

// Normalize cleans entries and removes duplicates.
func (c FetchPolicyConfig) Normalize() FetchPolicyConfig {
	norm := c
	norm.Allow = sanitizeDomainList(norm.Allow)
	norm.Disallow = sanitizeDomainList(norm.Disallow)
	return norm
}

// Validate ensures configured policy entries do not conflict.
func (c FetchPolicyConfig) Validate() error {
	norm := c.Normalize()

	allow := make(map[string]struct{}, len(norm.Allow))
	for _, host := range norm.Allow {
		allow[host] = struct{}{}
	}
	for _, host := range norm.Disallow {
		if _, ok := allow[host]; ok {
			return fmt.Errorf("fetch policy conflict: host %q present in both allow and disallow lists", host)
		}
	}
	return nil
}

// PermitsURL reports whether the policy allows fetching the given URL.
// Subdomains inherit their parent domain's entry.
func (c FetchPolicyConfig) PermitsURL(raw string) bool {
	host := normalizeHost(raw)
	if host == "" {
		return false
	}
	for _, blocked := range c.Disallow {
		if hostMatches(host, blocked) {
			return false
		}
	}
	if len(c.Allow) == 0 {
		return true
	}
	for _, allowed := range c.Allow {
		if hostMatches(host, allowed) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func sanitizeDomainList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		host := normalizeHost(raw)
		if host == "" {
			continue
		}
		seen[host] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		}
	}
	value = strings.TrimPrefix(value, "www.")
	return value
}
