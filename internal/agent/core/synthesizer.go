package core

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"
)

const synthesizerSystemPrompt = `You are a helpful waste management assistant. Based on the analysis provided, create a comprehensive, actionable response for the user.

Your response should:
1. Start with a clear answer about their waste type
2. Provide specific local disposal requirements
3. List nearby disposal options with practical details
4. Include any important preparation steps
5. End with helpful next steps

Be conversational but informative. Focus on actionable guidance.
Keep the response well-organized with clear sections.`

// ResponseSynthesizer turns a completed workflow state into the final
// user-facing answer. With a provider it asks the LLM; without one, or
// when the call fails, it renders a fixed-structure report instead. The
// report path is fully deterministic for a given state.
type ResponseSynthesizer struct {
	llm    LLMProvider
	logger *log.Logger
}

func NewSynthesizer(llm LLMProvider) *ResponseSynthesizer {
	return &ResponseSynthesizer{
		llm:    llm,
		logger: log.New(log.Writer(), "[SYNTH] ", log.LstdFlags),
	}
}

func (s *ResponseSynthesizer) Synthesize(ctx context.Context, state *WorkflowState) (string, error) {
	if s.llm != nil {
		out, err := s.llm.Generate(ctx, synthesizerSystemPrompt, s.buildUserPrompt(state))
		if err == nil && strings.TrimSpace(out) != "" {
			s.logger.Printf("response generated (%d chars)", len(out))
			return out, nil
		}
		if err != nil {
			s.logger.Printf("LLM response generation failed, using fallback: %v", err)
		}
	}
	return s.Fallback(state), nil
}

// buildUserPrompt summarizes the collected state for the LLM: the query,
// the analysis results, the regulation rules, and the three nearest
// facilities.
func (s *ResponseSynthesizer) buildUserPrompt(state *WorkflowState) string {
	query := state.Query
	if query == "" {
		query = "Waste disposal question"
	}
	wt := state.WasteType
	if wt == "" {
		wt = WasteUnknown
	}
	city, stateName := synthesisPlace(state.Location)

	regsAvailable := "No"
	rules := "No regulations available"
	if state.Regulation != nil {
		regsAvailable = "Yes"
		if state.Regulation.Rules != "" {
			rules = state.Regulation.Rules
		} else {
			rules = "No specific regulations found"
		}
	}

	var facilities strings.Builder
	if len(state.Facilities) > 0 {
		for i, f := range state.Facilities {
			if i == 3 {
				break
			}
			fmt.Fprintf(&facilities, "%d. %s - %s (%skm)\n", i+1, f.Name, f.Address, formatKm(f.DistanceKm))
		}
	} else {
		facilities.WriteString("No specific facilities found in database.\n")
	}

	context := fmt.Sprintf(`User Query: %s

ANALYSIS RESULTS:
- Waste Type: %s
- Location: %s, %s
- Regulations Available: %s
- Facilities Found: %d locations

REGULATION SUMMARY:
%s

DISPOSAL FACILITIES:
%s`, query, wt, city, stateName, regsAvailable, len(state.Facilities), rules, facilities.String())

	return fmt.Sprintf("Please create a comprehensive waste disposal response based on this analysis:\n\n%s\n\nMake it helpful, specific, and actionable for the user.", context)
}

// Fallback renders the report template without any LLM involvement.
func (s *ResponseSynthesizer) Fallback(state *WorkflowState) string {
	wt := state.WasteType
	if wt == "" {
		wt = WasteUnknown
	}
	city, stateName := synthesisPlace(state.Location)

	parts := []string{
		fmt.Sprintf("## %s Disposal Guidance for %s, %s", titleCase(string(wt)), city, stateName),
		fmt.Sprintf("\n**Waste Classification:** Your waste has been classified as %s.", wt),
	}

	if reg := state.Regulation; reg != nil {
		if reg.Jurisdiction != "" {
			parts = append(parts, fmt.Sprintf("\n**Local Regulations:** (%s)", reg.Jurisdiction))
		} else {
			parts = append(parts, "\n**Local Regulations:**")
		}
		rules := reg.Rules
		if rules == "" {
			rules = "No specific rules found"
		}
		parts = append(parts, "• "+rules)

		if len(reg.PreparationSteps) > 0 {
			parts = append(parts, "\n**Preparation Steps:**")
			for i, step := range reg.PreparationSteps {
				if i == 3 {
					break
				}
				parts = append(parts, "• "+step)
			}
		}
	}

	if len(state.Facilities) > 0 {
		parts = append(parts, "\n**Disposal Locations Near You:**")
		for i, f := range state.Facilities {
			if i == 3 {
				break
			}
			name := f.Name
			if name == "" {
				name = "Unknown Facility"
			}
			address := f.Address
			if address == "" {
				address = "Address not available"
			}
			parts = append(parts, fmt.Sprintf("%d. **%s** - %s (%skm)", i+1, name, address, formatKm(f.DistanceKm)))
			if f.Phone != "" {
				parts = append(parts, "   Phone: "+f.Phone)
			}
			if f.SpecialInstructions != "" {
				parts = append(parts, "   Note: "+f.SpecialInstructions)
			}
		}
	} else {
		parts = append(parts,
			"\n**Disposal Options:**",
			"• Contact your local waste management service",
			"• Check with municipal recycling programs",
			"• Search online for local disposal facilities",
		)
	}

	parts = append(parts,
		"\n**Next Steps:**",
		"1. Follow any preparation requirements listed above",
		"2. Contact the facility to confirm they accept your waste type",
		"3. Check facility hours and any fees",
		"4. Transport your waste safely to the disposal location",
	)

	return strings.Join(parts, "\n")
}

func synthesisPlace(loc *Location) (city, state string) {
	city, state = "your area", "your state"
	if loc == nil {
		return city, state
	}
	if loc.City != "" {
		city = loc.City
	}
	if loc.State != "" {
		state = loc.State
	}
	return city, state
}

// formatKm prints a distance without trailing zeros; an unset distance
// reads as Unknown.
func formatKm(km float64) string {
	if km == 0 {
		return "Unknown"
	}
	return strconv.FormatFloat(km, 'f', -1, 64)
}

// titleCase uppercases the first letter of every word, where a word
// starts after any non-letter. "e-waste" becomes "E-Waste".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
