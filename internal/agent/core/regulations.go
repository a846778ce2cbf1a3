package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// RegulationTable implements RegulationSource over an in-memory table
// seeded with state and federal disposal rules. Lookups resolve from most
// to least specific: state table, federal defaults (relabeled for the
// caller's state), then generated generic guidance, so every lookup
// returns something actionable. Advisory notes fetched from agency sites
// can be attached at runtime; the table is safe for concurrent use.
type RegulationTable struct {
	defaultState string
	logger       *log.Logger

	mu         sync.RWMutex
	byState    map[string]map[WasteType]Regulation
	advisories map[string]map[WasteType]string
}

// NewRegulationTable builds the seeded table.
func NewRegulationTable(defaultState string) *RegulationTable {
	t := &RegulationTable{
		defaultState: defaultState,
		logger:       log.New(log.Writer(), "[REGS] ", log.LstdFlags),
		byState:      seedRegulations(),
		advisories:   make(map[string]map[WasteType]string),
	}
	t.logger.Printf("regulation table initialized with %d jurisdictions", len(t.byState))
	return t
}

// Lookup finds the most specific regulation for the location and waste
// type. It never returns an error for an unmapped state or type; the
// generic fallback covers those.
func (t *RegulationTable) Lookup(ctx context.Context, loc Location, wt WasteType) (Regulation, error) {
	state := strings.ToUpper(strings.TrimSpace(loc.State))
	if state == "" {
		state = t.defaultState
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if stateRegs, ok := t.byState[state]; ok {
		if reg, ok := stateRegs[wt]; ok {
			return t.withAdvisory(state, wt, reg), nil
		}
	}

	if reg, ok := t.byState["DEFAULT"][wt]; ok {
		reg.Jurisdiction = fmt.Sprintf("Federal Guidelines (State: %s)", state)
		return t.withAdvisory(state, wt, reg), nil
	}

	t.logger.Printf("no regulation entry for %s in %s, using generic guidance", wt, state)
	return fallbackRegulation(wt, state), nil
}

// UpsertAdvisory attaches a freshly fetched agency advisory to all future
// lookups for the given state and waste type.
func (t *RegulationTable) UpsertAdvisory(state string, wt WasteType, title, url string) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" || title == "" {
		return
	}
	note := title
	if url != "" {
		note = title + " - " + url
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advisories[state] == nil {
		t.advisories[state] = make(map[WasteType]string)
	}
	t.advisories[state][wt] = note
}

func (t *RegulationTable) withAdvisory(state string, wt WasteType, reg Regulation) Regulation {
	if note, ok := t.advisories[state][wt]; ok {
		if reg.Note != "" {
			reg.Note += "; "
		}
		reg.Note += "Recent advisory: " + note
	}
	return reg
}

// fallbackRegulation builds generic guidance when neither the state table
// nor the federal defaults cover the waste type.
func fallbackRegulation(wt WasteType, state string) Regulation {
	reg := Regulation{
		Jurisdiction: fmt.Sprintf("General Guidelines (%s)", state),
		Restrictions: []string{"Follow local environmental regulations"},
		Penalties:    "Varies by local jurisdiction",
		SourceURL:    "https://www.epa.gov/recycle",
		LastUpdated:  time.Now().Format("2006-01-02"),
		Note:         "General guidance - check with local authorities for specific regulations",
	}

	switch wt {
	case WasteEWaste:
		reg.Rules = "Electronic waste should be recycled at certified facilities. Do not put in regular trash."
		reg.PreparationSteps = []string{"Remove personal data", "Find local e-waste recycler"}
		reg.DisposalMethods = []string{"Electronics retailers", "Recycling centers", "Manufacturer programs"}
	case WasteMedical:
		reg.Rules = "Medical waste requires special handling. Use approved disposal methods."
		reg.PreparationSteps = []string{"Use sharps containers for needles", "Take medications to pharmacy"}
		reg.DisposalMethods = []string{"Pharmacy take-back", "Hospital programs", "Mail-back services"}
	case WasteHazardous:
		reg.Rules = "Hazardous materials cannot go in regular trash. Take to special collection facilities."
		reg.PreparationSteps = []string{"Keep in original containers", "Do not mix chemicals"}
		reg.DisposalMethods = []string{"Hazardous waste facilities", "Special collection events"}
	case WasteRecyclable:
		reg.Rules = "Clean recyclables and follow local sorting guidelines."
		reg.PreparationSteps = []string{"Clean containers", "Check local accepted materials"}
		reg.DisposalMethods = []string{"Curbside recycling", "Recycling centers"}
	case WasteOrganic:
		reg.Rules = "Food scraps can be composted where programs exist."
		reg.PreparationSteps = []string{"Separate food waste", "Check for local composting programs"}
		reg.DisposalMethods = []string{"Composting programs", "Home composting"}
	default:
		reg.Rules = "Follow local waste disposal guidelines and environmental regulations."
		reg.PreparationSteps = []string{"Check local disposal requirements"}
		reg.DisposalMethods = []string{"Local waste management services"}
	}
	return reg
}

// seedRegulations returns the built-in rule set, keyed state -> waste type.
// The DEFAULT entry carries federal guidance for every category and backs
// any state without its own rules.
func seedRegulations() map[string]map[WasteType]Regulation {
	return map[string]map[WasteType]Regulation{
		"NY": {
			WasteEWaste: {
				Jurisdiction: "New York State",
				Rules:        "Electronic waste is banned from landfills. Must be recycled at certified facilities. Retailers selling electronics must accept old devices for recycling.",
				PreparationSteps: []string{
					"Remove all personal data from devices",
					"Remove batteries if possible",
					"Keep original packaging if available",
					"Do not attempt to disassemble devices",
				},
				Restrictions: []string{
					"Cannot be placed in regular trash",
					"Cannot be placed in recycling bins",
					"Businesses must use certified haulers",
				},
				Penalties:       "Fines up to $350 for improper disposal",
				DisposalMethods: []string{"Certified e-waste recyclers", "Retail take-back programs", "Municipal collection events"},
				SourceURL:       "https://www.dec.ny.gov/chemical/66872.html",
				LastUpdated:     "2024-01-15",
			},
			WasteMedical: {
				Jurisdiction: "New York State",
				Rules:        "Medical waste requires special handling. Sharps must be in puncture-proof containers. Medications can be returned to pharmacies or police stations.",
				PreparationSteps: []string{
					"Place sharps in FDA-approved containers",
					"Do not mix different types of medical waste",
					"Remove personal information from prescription labels",
					"Never flush medications down drains",
				},
				Restrictions: []string{
					"Sharps cannot go in regular trash",
					"Controlled substances have special requirements",
					"Home healthcare generators have different rules than facilities",
				},
				Penalties:       "Violations can result in fines up to $37,500",
				DisposalMethods: []string{"Hospital disposal programs", "Pharmacy take-back", "Police take-back events", "Mail-back programs"},
				SourceURL:       "https://www.health.ny.gov/environmental/waste/medical/",
				LastUpdated:     "2024-02-01",
			},
			WasteHazardous: {
				Jurisdiction: "New York State",
				Rules:        "Hazardous household waste requires special collection. Paint, chemicals, and batteries must go to designated facilities. Never pour down drains or put in regular trash.",
				PreparationSteps: []string{
					"Keep materials in original containers",
					"Don't mix different chemicals",
					"Ensure containers are sealed and labeled",
					"Transport safely - no loose materials",
				},
				Restrictions: []string{
					"Cannot be placed in regular trash",
					"Cannot be poured down drains or sewers",
					"Cannot be burned or buried",
					"Quantity limits may apply at collection sites",
				},
				Penalties:       "Improper disposal can result in cleanup costs and fines",
				DisposalMethods: []string{"Household hazardous waste facilities", "Special collection events", "Paint recycling programs"},
				SourceURL:       "https://www.dec.ny.gov/chemical/8485.html",
				LastUpdated:     "2024-01-20",
			},
			WasteRecyclable: {
				Jurisdiction: "New York State",
				Rules:        "Recyclables must be clean and separated. NYC has different rules than rest of state. Check local guidelines for accepted materials.",
				PreparationSteps: []string{
					"Clean containers of food residue",
					"Remove caps and lids if required",
					"Separate materials by type",
					"Check local accepted materials list",
				},
				Restrictions: []string{
					"No contaminated materials",
					"No plastic bags in curbside recycling",
					"Some materials require special programs",
				},
				Penalties:       "Contamination can result in collection refusal",
				DisposalMethods: []string{"Curbside recycling", "Drop-off centers", "Bottle deposits"},
				SourceURL:       "https://www.dec.ny.gov/chemical/8792.html",
				LastUpdated:     "2024-01-10",
			},
			WasteOrganic: {
				Jurisdiction: "New York State",
				Rules:        "Food scraps and yard waste can be composted. NYC requires food scrap separation for large buildings. Check if your area has collection programs.",
				PreparationSteps: []string{
					"Separate food scraps from other waste",
					"No meat, dairy, or oils in some programs",
					"Use compostable bags if required",
					"Keep yard waste separate from food waste",
				},
				Restrictions: []string{
					"No pet waste in compost",
					"No diseased plants",
					"Some programs exclude certain food types",
				},
				Penalties:       "Large generators may face fines for non-compliance",
				DisposalMethods: []string{"Curbside organics collection", "Drop-off composting", "Home composting"},
				SourceURL:       "https://www.dec.ny.gov/chemical/8792.html",
				LastUpdated:     "2024-01-05",
			},
		},
		"CA": {
			WasteEWaste: {
				Jurisdiction: "California State",
				Rules:        "E-waste recycling fee paid at purchase. Free recycling at certified centers. Covered Electronic Waste program covers TVs, monitors, computers, printers.",
				PreparationSteps: []string{
					"No preparation required for most items",
					"Remove personal data",
					"Bring proof of California residency for free recycling",
				},
				Restrictions: []string{
					"Banned from landfills since 2004",
					"CRT devices require special handling",
				},
				Penalties:       "Illegal dumping fines up to $6,000",
				DisposalMethods: []string{"Certified collection sites", "Retail programs", "Manufacturer take-back"},
				SourceURL:       "https://www.calrecycle.ca.gov/Electronics",
				LastUpdated:     "2024-01-12",
			},
			WasteHazardous: {
				Jurisdiction: "California State",
				Rules:        "Universal Waste Rule covers batteries, fluorescent lamps, electronics. Household hazardous waste programs available statewide.",
				PreparationSteps: []string{
					"Separate different waste types",
					"Keep in original containers when possible",
					"No mixing of chemicals",
				},
				Restrictions: []string{
					"Strict landfill bans",
					"Enhanced penalties for violations",
				},
				Penalties:       "Fines can exceed $25,000 for improper disposal",
				DisposalMethods: []string{"HHW facilities", "Curbside programs", "Special events"},
				SourceURL:       "https://www.calrecycle.ca.gov/reducewaste/household",
				LastUpdated:     "2024-01-18",
			},
		},
		"TX": {
			WasteEWaste: {
				Jurisdiction: "Texas State",
				Rules:        "Computer Take-Back Program requires manufacturers to provide recycling. No state e-waste disposal fee. Check local programs.",
				PreparationSteps: []string{
					"Remove personal data",
					"Check manufacturer take-back programs first",
				},
				Restrictions: []string{
					"Some local landfill bans apply",
					"CRT monitors have special requirements",
				},
				Penalties:       "Varies by local jurisdiction",
				DisposalMethods: []string{"Manufacturer programs", "Local collection events", "Private recyclers"},
				SourceURL:       "https://www.tceq.texas.gov/waste/recycle_reuse/electronics",
				LastUpdated:     "2024-01-08",
			},
		},
		"DEFAULT": {
			WasteEWaste: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Electronic waste should be recycled through certified programs. Remove personal data before disposal. Check EPA guidelines and local regulations.",
				PreparationSteps: []string{
					"Back up and delete personal data",
					"Remove batteries if possible",
					"Find certified recyclers in your area",
				},
				Restrictions: []string{
					"Avoid landfill disposal when possible",
					"Don't disassemble devices yourself",
				},
				Penalties:       "Varies by local jurisdiction",
				DisposalMethods: []string{"EPA certified recyclers", "Retail programs", "Manufacturer take-back"},
				SourceURL:       "https://www.epa.gov/recycle/electronics-donation-and-recycling",
				LastUpdated:     "2024-01-01",
			},
			WasteMedical: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Follow DEA and FDA guidelines. Use approved sharps containers. Dispose of medications through take-back programs.",
				PreparationSteps: []string{
					"Use FDA-approved sharps containers",
					"Remove personal info from prescriptions",
					"Don't flush most medications",
				},
				Restrictions: []string{
					"Sharps require special containers",
					"Controlled substances need DEA-authorized disposal",
				},
				Penalties:       "Federal violations can result in significant fines",
				DisposalMethods: []string{"DEA take-back events", "Pharmacy programs", "Mail-back programs"},
				SourceURL:       "https://www.fda.gov/drugs/disposal-unused-medicines-what-you-should-know",
				LastUpdated:     "2024-01-01",
			},
			WasteHazardous: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Follow EPA guidelines for household hazardous waste. Never pour down drains or put in regular trash. Use local collection programs.",
				PreparationSteps: []string{
					"Keep in original containers",
					"Don't mix chemicals",
					"Transport safely to collection sites",
				},
				Restrictions: []string{
					"Cannot go in regular trash in most areas",
					"Cannot be poured down drains",
					"Cannot be burned",
				},
				Penalties:       "EPA violations can result in substantial fines",
				DisposalMethods: []string{"Local HHW facilities", "Collection events", "Retail programs"},
				SourceURL:       "https://www.epa.gov/hw/household-hazardous-waste-hhw",
				LastUpdated:     "2024-01-01",
			},
			WasteRecyclable: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Follow local recycling guidelines. Clean containers before recycling. Check what materials are accepted locally.",
				PreparationSteps: []string{
					"Clean food containers",
					"Check local accepted materials",
					"Separate materials as required",
				},
				Restrictions: []string{
					"No contaminated materials",
					"Follow local sorting requirements",
				},
				Penalties:       "Varies by local program",
				DisposalMethods: []string{"Curbside recycling", "Drop-off centers", "Deposit programs"},
				SourceURL:       "https://www.epa.gov/recycle",
				LastUpdated:     "2024-01-01",
			},
			WasteOrganic: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Composting reduces methane emissions. Separate organic waste when programs available. Consider home composting.",
				PreparationSteps: []string{
					"Separate food scraps from other waste",
					"Check local program requirements",
					"Consider home composting options",
				},
				Restrictions: []string{
					"No pet waste in most programs",
					"Some programs exclude meat/dairy",
				},
				Penalties:       "Generally none for households",
				DisposalMethods: []string{"Local composting programs", "Home composting", "Drop-off sites"},
				SourceURL:       "https://www.epa.gov/recycle/composting-home",
				LastUpdated:     "2024-01-01",
			},
			WasteHousehold: {
				Jurisdiction: "Federal/General Guidelines",
				Rules:        "Regular household waste goes to landfills or waste-to-energy facilities. Minimize waste through reduction and recycling.",
				PreparationSteps: []string{
					"Bag waste securely",
					"Follow local collection schedule",
					"Separate recyclables and organics first",
				},
				Restrictions: []string{
					"No hazardous materials",
					"No large items without special pickup",
				},
				Penalties:       "Varies by local waste management rules",
				DisposalMethods: []string{"Curbside collection", "Transfer stations", "Drop-off sites"},
				SourceURL:       "https://www.epa.gov/recycle/reducing-and-reusing-basics",
				LastUpdated:     "2024-01-01",
			},
		},
	}
}
