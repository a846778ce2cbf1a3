package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve"
)

// cityAliases folds boroughs and nicknames onto the metro areas the
// directory has data for. Unknown cities fall back to New York.
var cityAliases = map[string]string{
	"new york":     "new york",
	"manhattan":    "new york",
	"brooklyn":     "new york",
	"queens":       "new york",
	"bronx":        "new york",
	"los angeles":  "los angeles",
	"la":           "los angeles",
	"hollywood":    "los angeles",
	"santa monica": "los angeles",
	"chicago":      "chicago",
	"windy city":   "chicago",
}

// FacilitySearchHit is one full-text search result from the directory.
type FacilitySearchHit struct {
	Facility Facility `json:"facility"`
	City     string   `json:"city"`
	Score    float64  `json:"score"`
}

// FacilityDirectory implements FacilityFinder over a seeded in-memory
// dataset plus a bleve full-text index for ad hoc search. The dataset is
// immutable after construction, so concurrent lookups need no locking.
type FacilityDirectory struct {
	byCity map[string][]Facility
	index  bleve.Index
	byID   map[string]facilityRef
	logger *log.Logger
}

type facilityRef struct {
	city string
	idx  int
}

type facilityDoc struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Instructions string `json:"instructions"`
	WasteTypes   string `json:"waste_types"`
}

// NewFacilityDirectory builds the directory and its search index.
func NewFacilityDirectory() (*FacilityDirectory, error) {
	d := &FacilityDirectory{
		byCity: seedFacilities(),
		byID:   make(map[string]facilityRef),
		logger: log.New(log.Writer(), "[FACILITY] ", log.LstdFlags),
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create facility index: %w", err)
	}
	for city, facilities := range d.byCity {
		for i := range facilities {
			f := &facilities[i]
			id := fmt.Sprintf("%s/%d", city, i)
			types := make([]string, len(f.AcceptedWasteTypes))
			for j, wt := range f.AcceptedWasteTypes {
				types[j] = string(wt)
			}
			doc := facilityDoc{
				Name:         f.Name,
				Address:      f.Address,
				City:         city,
				Instructions: f.SpecialInstructions,
				WasteTypes:   strings.Join(types, " "),
			}
			if err := index.Index(id, doc); err != nil {
				return nil, fmt.Errorf("failed to index facility %s: %w", f.Name, err)
			}
			d.byID[id] = facilityRef{city: city, idx: i}
		}
	}
	d.index = index
	return d, nil
}

// Find returns facilities near the location that take the waste type,
// sorted nearest first and capped at ten. When no facility in the metro
// area lists the type explicitly, the whole area is returned with a
// call-ahead warning instead of an empty list; household waste skips that
// widening since curbside collection handles it.
func (d *FacilityDirectory) Find(ctx context.Context, loc Location, wt WasteType, radiusKm float64) ([]Facility, error) {
	key := searchCityKey(loc.City)
	all := d.byCity[key]
	d.logger.Printf("searching %s facilities near %s within %.0f km (%d candidates)", wt, key, radiusKm, len(all))

	var matches []Facility
	for _, f := range all {
		if f.Accepts(wt) {
			matches = append(matches, f)
		}
	}

	if len(matches) == 0 && wt != WasteHousehold {
		for _, f := range all {
			f.SpecialInstructions = fmt.Sprintf("Call ahead to confirm %s acceptance. ", wt) + f.SpecialInstructions
			matches = append(matches, f)
		}
	}

	if loc.HasCoords {
		for i := range matches {
			if matches[i].Latitude != 0 || matches[i].Longitude != 0 {
				km := haversineKm(loc.Latitude, loc.Longitude, matches[i].Latitude, matches[i].Longitude)
				matches[i].DistanceKm = math.Round(km*10) / 10
			}
		}
	}

	matches = dedupeFacilities(matches)
	sort.SliceStable(matches, func(i, j int) bool {
		return sortDistance(matches[i]) < sortDistance(matches[j])
	})
	if len(matches) > 10 {
		matches = matches[:10]
	}
	if matches == nil {
		matches = []Facility{}
	}
	return matches, nil
}

// Search runs a full-text query over facility names, addresses, and
// instructions, returning up to k hits.
func (d *FacilityDirectory) Search(ctx context.Context, query string, k int) ([]FacilitySearchHit, error) {
	if k <= 0 {
		k = 5
	}
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := d.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("facility search failed: %w", err)
	}

	hits := make([]FacilitySearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ref, ok := d.byID[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, FacilitySearchHit{
			Facility: d.byCity[ref.city][ref.idx],
			City:     ref.city,
			Score:    hit.Score,
		})
	}
	return hits, nil
}

// dedupeFacilities drops duplicate (name, address) pairs, keeping the
// nearest copy.
func dedupeFacilities(in []Facility) []Facility {
	type key struct{ name, address string }
	seen := make(map[key]int, len(in))
	var out []Facility
	for _, f := range in {
		k := key{f.Name, f.Address}
		if i, ok := seen[k]; ok {
			if sortDistance(f) < sortDistance(out[i]) {
				out[i] = f
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}
	return out
}

// sortDistance treats an unset distance as far away rather than adjacent.
func sortDistance(f Facility) float64 {
	if f.DistanceKm == 0 {
		return 999
	}
	return f.DistanceKm
}

// searchCityKey normalizes a city name onto a directory key.
func searchCityKey(city string) string {
	if key, ok := cityAliases[strings.ToLower(strings.TrimSpace(city))]; ok {
		return key
	}
	return "new york"
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// seedFacilities returns the built-in facility dataset, keyed by metro
// area.
func seedFacilities() map[string][]Facility {
	return map[string][]Facility{
		"new york": {
			{
				Name:                "Best Buy Electronics Recycling",
				Address:             "622 Broadway, New York, NY 10012",
				Phone:               "(212) 614-1000",
				Website:             "https://www.bestbuy.com/site/services/recycling/pcmcat149900050025.c",
				AcceptedWasteTypes:  []WasteType{WasteEWaste},
				Hours:               []string{"Mon-Sat: 10AM-9PM", "Sun: 11AM-8PM"},
				SpecialInstructions: "Free recycling for most electronics. Limit 3 items per day.",
				Latitude:            40.7259,
				Longitude:           -73.9986,
				DistanceKm:          2.1,
				Rating:              4.2,
			},
			{
				Name:                "NYC Department of Sanitation Special Waste Drop-Off",
				Address:             "1550 2nd Ave, New York, NY 10075",
				Phone:               "(311) 692-9647",
				Website:             "https://www1.nyc.gov/site/dsny/resources/recycling-and-garbage-laws.page",
				AcceptedWasteTypes:  []WasteType{WasteHazardous, WasteEWaste},
				Hours:               []string{"Sat-Sun: 10AM-5PM"},
				SpecialInstructions: "NYC residents only. Bring ID. No business waste.",
				Latitude:            40.7736,
				Longitude:           -73.9566,
				DistanceKm:          1.8,
				Rating:              3.8,
			},
			{
				Name:                "CVS Pharmacy - Drug Take Back",
				Address:             "1619 Broadway, New York, NY 10019",
				Phone:               "(212) 247-8384",
				Website:             "https://www.cvs.com/content/prescription-drug-abuse/disposal",
				AcceptedWasteTypes:  []WasteType{WasteMedical},
				Hours:               []string{"Mon-Fri: 8AM-10PM", "Sat-Sun: 9AM-9PM"},
				SpecialInstructions: "Medication disposal kiosk available 24/7. No controlled substances.",
				Latitude:            40.7614,
				Longitude:           -73.9776,
				DistanceKm:          1.2,
				Rating:              4.0,
			},
			{
				Name:                "Big Apple Recycling",
				Address:             "2132 Atlantic Ave, Brooklyn, NY 11233",
				Phone:               "(718) 922-8026",
				AcceptedWasteTypes:  []WasteType{WasteRecyclable},
				Hours:               []string{"Mon-Fri: 7AM-5PM", "Sat: 8AM-4PM"},
				SpecialInstructions: "Cash paid for aluminum cans and glass bottles.",
				Latitude:            40.6782,
				Longitude:           -73.9442,
				DistanceKm:          8.7,
				Rating:              4.1,
			},
		},
		"los angeles": {
			{
				Name:                "UCLA Hazardous Waste Facility",
				Address:             "595 Charles E. Young Dr E, Los Angeles, CA 90095",
				Phone:               "(310) 825-5662",
				Website:             "https://www.ehs.ucla.edu/hazwaste-management",
				AcceptedWasteTypes:  []WasteType{WasteHazardous, WasteEWaste},
				Hours:               []string{"Mon-Fri: 7AM-3:30PM"},
				SpecialInstructions: "UCLA community members only. Call ahead.",
				Latitude:            34.0689,
				Longitude:           -118.4452,
				DistanceKm:          3.2,
				Rating:              4.3,
			},
			{
				Name:                "Staples Electronics Recycling",
				Address:             "11041 Santa Monica Blvd, Los Angeles, CA 90025",
				Phone:               "(310) 231-9979",
				Website:             "https://www.staples.com/sbd/cre/marketing/sustainability-center/recycling-services/",
				AcceptedWasteTypes:  []WasteType{WasteEWaste},
				Hours:               []string{"Mon-Fri: 8AM-9PM", "Sat: 9AM-9PM", "Sun: 10AM-7PM"},
				SpecialInstructions: "Free recycling for small electronics. Fees for monitors.",
				Latitude:            34.0399,
				Longitude:           -118.4617,
				DistanceKm:          4.1,
				Rating:              3.9,
			},
			{
				Name:                "City of LA SAFE Centers",
				Address:             "8840 National Blvd, Culver City, CA 90232",
				Phone:               "(800) 988-6942",
				Website:             "https://www.lacitysan.org/cs/groups/sg_sla/documents/document/y250/mdi0/~edisp/cnt026550.pdf",
				AcceptedWasteTypes:  []WasteType{WasteHazardous, WasteEWaste, WasteMedical},
				Hours:               []string{"Fri-Sat: 9AM-3PM", "Sun: 9AM-3PM"},
				SpecialInstructions: "LA residents only. Free disposal. Proof of residency required.",
				Latitude:            34.0261,
				Longitude:           -118.3957,
				DistanceKm:          2.8,
				Rating:              4.5,
			},
		},
		"chicago": {
			{
				Name:                "Best Buy Recycling Center",
				Address:             "1000 W North Ave, Chicago, IL 60642",
				Phone:               "(312) 846-5200",
				Website:             "https://www.bestbuy.com/site/services/recycling/pcmcat149900050025.c",
				AcceptedWasteTypes:  []WasteType{WasteEWaste},
				Hours:               []string{"Mon-Sat: 10AM-10PM", "Sun: 11AM-8PM"},
				SpecialInstructions: "Free recycling. $30 fee for tube TVs and monitors.",
				Latitude:            41.9102,
				Longitude:           -87.6503,
				DistanceKm:          2.9,
				Rating:              4.0,
			},
			{
				Name:                "Chicago Household Chemical and Computer Recycling",
				Address:             "1150 N North Branch St, Chicago, IL 60642",
				Phone:               "(312) 744-7685",
				Website:             "https://www.chicago.gov/city/en/depts/streets/supp_info/recycling1/household_chemicalandcomputerrecyclingfacility.html",
				AcceptedWasteTypes:  []WasteType{WasteHazardous, WasteEWaste},
				Hours:               []string{"Tue-Sat: 8AM-4PM"},
				SpecialInstructions: "Chicago residents only. Free disposal. Call ahead for large items.",
				Latitude:            41.9023,
				Longitude:           -87.6431,
				DistanceKm:          1.7,
				Rating:              4.2,
			},
		},
	}
}
