package core

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/NabidKabir/kura-final-project/config"
)

var (
	zipRe   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	coordRe = regexp.MustCompile(`(-?\d+\.?\d*)\s*,\s*(-?\d+\.?\d*)`)
)

// stateAbbrevs maps full state names (lowercased) to their two-letter codes.
var stateAbbrevs = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

// zipStateRanges maps three-digit ZIP prefixes to states. Ranges are
// checked in order, so narrower ranges must come before the wider ones
// they carve out of.
var zipStateRanges = []struct {
	lo, hi int
	state  string
}{
	{100, 149, "NY"},
	{150, 196, "PA"},
	{197, 199, "DE"},
	{10, 59, "MA"},
	{60, 69, "CT"},
	{70, 89, "NJ"},
	{90, 99, "CT"},
	{200, 299, "DC"},
	{300, 399, "GA"},
	{400, 499, "KY"},
	{590, 599, "MT"},
	{500, 589, "IA"},
	{600, 699, "IL"},
	{700, 799, "LA"},
	{800, 899, "CO"},
	{900, 969, "CA"},
	{970, 979, "TX"},
	{980, 999, "WA"},
}

// GeoLocator implements Locator. It parses explicit hints (zip code,
// coordinates, "City, ST") without any network call and only reaches for
// IP-based detection when the hint is empty or too vague; when everything
// fails it falls back to the configured default location.
type GeoLocator struct {
	cfg      config.GeneralConfig
	http     *HTTPClient
	endpoint string
	logger   *log.Logger
}

// NewLocator creates a locator with the given defaults and HTTP client.
func NewLocator(cfg config.GeneralConfig, httpc *HTTPClient) *GeoLocator {
	return &GeoLocator{
		cfg:      cfg,
		http:     httpc,
		endpoint: "https://ipapi.co/json/",
		logger:   log.New(log.Writer(), "[GEO] ", log.LstdFlags),
	}
}

// Resolve turns a location hint into a Location. It never returns an
// unusable value: missing fields are filled from IP detection or the
// configured defaults.
func (l *GeoLocator) Resolve(ctx context.Context, hint string) (Location, error) {
	hint = strings.TrimSpace(hint)

	if hint == "" {
		loc, err := l.lookupIP(ctx)
		if err != nil {
			l.logger.Printf("IP geolocation failed, using default location: %v", err)
			loc = l.defaultLocation()
		}
		return l.validate(loc), nil
	}

	if zipRe.MatchString(hint) {
		loc := Location{ZipCode: hint, Address: hint}
		if st := stateForZip(hint); st != "" {
			loc.State = st
		}
		return l.validate(loc), nil
	}

	if m := coordRe.FindStringSubmatch(hint); m != nil {
		lat, latErr := strconv.ParseFloat(m[1], 64)
		lng, lngErr := strconv.ParseFloat(m[2], 64)
		if latErr == nil && lngErr == nil && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
			return l.validate(Location{
				Address:   hint,
				Latitude:  lat,
				Longitude: lng,
				HasCoords: true,
			}), nil
		}
	}

	if city, state, ok := splitCityState(hint); ok {
		return l.validate(Location{City: city, State: state, Address: hint}), nil
	}

	// Vague input ("Brooklyn", a street address): keep it as the address
	// and let IP detection supply city/state if it can.
	loc := Location{Address: hint}
	if ip, err := l.lookupIP(ctx); err == nil {
		loc.City = ip.City
		loc.State = ip.State
		loc.ZipCode = ip.ZipCode
		loc.Latitude = ip.Latitude
		loc.Longitude = ip.Longitude
		loc.HasCoords = ip.HasCoords
	}
	return l.validate(loc), nil
}

// lookupIP asks ipapi.co for the caller's approximate location.
func (l *GeoLocator) lookupIP(ctx context.Context) (Location, error) {
	if l.http == nil {
		return Location{}, fmt.Errorf("no HTTP client configured")
	}

	var out struct {
		City        string  `json:"city"`
		Region      string  `json:"region"`
		Postal      string  `json:"postal"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		CountryCode string  `json:"country_code"`
	}
	if err := l.http.DoJSON(ctx, "GET", l.endpoint, nil, nil, &out); err != nil {
		return Location{}, fmt.Errorf("failed to query ipapi.co: %w", err)
	}

	loc := Location{
		City:      out.City,
		State:     normalizeState(out.Region),
		Country:   out.CountryCode,
		ZipCode:   out.Postal,
		Latitude:  out.Latitude,
		Longitude: out.Longitude,
		HasCoords: out.Latitude != 0 || out.Longitude != 0,
		Address:   strings.Trim(out.City+", "+out.Region, ", "),
	}
	l.logger.Printf("IP-based location: %s, %s", loc.City, loc.State)
	return loc, nil
}

// defaultLocation returns the configured fallback location.
func (l *GeoLocator) defaultLocation() Location {
	return configDefaultLocation(l.cfg)
}

// configDefaultLocation builds the configured fallback location, used both
// when detection fails and as the stage-level fallback in the workflow.
func configDefaultLocation(cfg config.GeneralConfig) Location {
	return Location{
		City:      cfg.DefaultCity,
		State:     cfg.DefaultState,
		Country:   cfg.DefaultCountry,
		ZipCode:   cfg.DefaultZip,
		Latitude:  cfg.DefaultLatitude,
		Longitude: cfg.DefaultLongitude,
		HasCoords: cfg.DefaultLatitude != 0 || cfg.DefaultLongitude != 0,
		Address:   cfg.DefaultCity + ", " + cfg.DefaultState,
	}
}

// validate fills the fields regulations and facility search depend on.
func (l *GeoLocator) validate(loc Location) Location {
	if loc.State == "" && loc.ZipCode != "" {
		loc.State = stateForZip(loc.ZipCode)
	}
	if loc.City == "" {
		loc.City = "Unknown City"
	}
	if loc.State == "" {
		loc.State = l.cfg.DefaultState
	}
	if loc.Country == "" {
		loc.Country = l.cfg.DefaultCountry
	}
	return loc
}

// splitCityState parses "City, ST" and "City, StateName" inputs. The
// state part must normalize to a two-letter code, which keeps comma-joined
// junk (like an out-of-range coordinate pair) from parsing as a place.
func splitCityState(s string) (city, state string, ok bool) {
	if !strings.Contains(s, ",") {
		return "", "", false
	}
	parts := strings.SplitN(s, ",", 2)
	city = titleCase(strings.TrimSpace(parts[0]))
	state = normalizeState(strings.TrimSpace(parts[1]))
	if city == "" || !isStateCode(state) {
		return "", "", false
	}
	return city, state, true
}

// isStateCode reports whether s is a plausible two-letter region code.
func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// normalizeState converts full state names to two-letter codes; anything
// unrecognized is truncated to its first two letters, uppercased.
func normalizeState(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return ""
	}
	if abbrev, ok := stateAbbrevs[strings.ToLower(state)]; ok {
		return abbrev
	}
	upper := strings.ToUpper(state)
	if len(upper) > 2 {
		return upper[:2]
	}
	return upper
}

// stateForZip infers a state from the first three ZIP digits.
func stateForZip(zip string) string {
	if len(zip) < 5 {
		return ""
	}
	prefix, err := strconv.Atoi(zip[:3])
	if err != nil {
		return ""
	}
	for _, r := range zipStateRanges {
		if prefix >= r.lo && prefix <= r.hi {
			return r.state
		}
	}
	return ""
}
