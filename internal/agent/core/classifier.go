package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// classifierSystemPrompt instructs the model to emit strict JSON only; the
// field names match classifyParseResult below.
const classifierSystemPrompt = `You are a waste classification expert. Classify the waste item the user describes.

Categories:
- e-waste: electronics, batteries, computers, phones, cables, chargers
- medical: needles, syringes, medications, medical supplies
- hazardous: paint, chemicals, oil, pesticides, solvents
- recyclable: paper, cardboard, plastic bottles, glass, metal cans
- organic: food scraps, yard waste, compostable materials
- household: general trash, non-recyclable everyday items

Hazard levels: low, medium, high, critical

Return ONLY strict JSON with keys:
{"primary_type": string, "sub_type": string, "confidence": number 0..1, "hazard_level": string, "special_handling": boolean, "reasoning": string, "preparation_needed": [string]}`

type classifyParseResult struct {
	PrimaryType       string   `json:"primary_type"`
	SubType           string   `json:"sub_type"`
	Confidence        float64  `json:"confidence"`
	HazardLevel       string   `json:"hazard_level"`
	SpecialHandling   bool     `json:"special_handling"`
	Reasoning         string   `json:"reasoning"`
	PreparationNeeded []string `json:"preparation_needed"`
}

// keywordRule drives the deterministic classification path. Rules are
// checked in order; the best-scoring rule wins.
type keywordRule struct {
	wasteType       WasteType
	keywords        []string
	hazard          HazardLevel
	specialHandling bool
}

var keywordRules = []keywordRule{
	{WasteEWaste, []string{"battery", "electronic", "computer", "laptop", "phone", "tablet", "tv", "monitor", "cable", "charger"}, HazardMedium, true},
	{WasteMedical, []string{"needle", "syringe", "medication", "medicine", "pill", "bandage", "medical", "thermometer"}, HazardHigh, true},
	{WasteHazardous, []string{"paint", "oil", "chemical", "pesticide", "cleaner", "solvent", "acid", "gasoline"}, HazardHigh, true},
	{WasteRecyclable, []string{"plastic", "bottle", "can", "cardboard", "paper", "glass", "jar", "container"}, HazardLow, false},
	{WasteOrganic, []string{"food", "organic", "compost", "yard", "leaves", "fruit", "vegetable"}, HazardLow, false},
}

// WasteClassifier implements Classifier. When an LLM provider is available
// it asks the model first and falls back to keyword rules on any failure;
// without a provider it is fully deterministic.
type WasteClassifier struct {
	llm    LLMProvider
	logger *log.Logger
}

// NewClassifier creates a classifier. llm may be nil.
func NewClassifier(llm LLMProvider) *WasteClassifier {
	return &WasteClassifier{
		llm:    llm,
		logger: log.New(log.Writer(), "[CLASSIFY] ", log.LstdFlags),
	}
}

// Classify inspects a description and returns the category plus detail.
func (c *WasteClassifier) Classify(ctx context.Context, description string) (WasteType, Classification, error) {
	if c.llm != nil {
		wt, cl, err := c.classifyWithLLM(ctx, description)
		if err == nil {
			return wt, cl, nil
		}
		c.logger.Printf("LLM classification failed, using keyword rules: %v", err)
	}
	wt, cl := classifyByKeywords(description)
	return wt, cl, nil
}

func (c *WasteClassifier) classifyWithLLM(ctx context.Context, description string) (WasteType, Classification, error) {
	out, err := c.llm.Generate(ctx, classifierSystemPrompt, description)
	if err != nil {
		return "", Classification{}, fmt.Errorf("failed to generate classification: %w", err)
	}

	var parsed classifyParseResult
	if err := json.Unmarshal([]byte(extractFirstJSON(out)), &parsed); err != nil {
		return "", Classification{}, fmt.Errorf("failed to parse classification response: %w", err)
	}

	wt := ParseWasteType(parsed.PrimaryType)
	if wt == WasteUnknown {
		wt = WasteHousehold
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	return wt, Classification{
		SubType:           parsed.SubType,
		Confidence:        parsed.Confidence,
		HazardLevel:       ParseHazardLevel(parsed.HazardLevel),
		SpecialHandling:   parsed.SpecialHandling,
		Explanation:       parsed.Reasoning,
		PreparationNeeded: parsed.PreparationNeeded,
	}, nil
}

// classifyByKeywords scores each rule by the fraction of its keywords that
// appear in the description and picks the best scorer. Zero matches across
// the board defaults to household waste at low confidence, so garbage input
// still produces a usable classification.
func classifyByKeywords(description string) (WasteType, Classification) {
	text := strings.ToLower(description)

	var best *keywordRule
	bestScore := 0.0
	for i := range keywordRules {
		rule := &keywordRules[i]
		matches := 0
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(rule.keywords))
		if score > bestScore {
			bestScore = score
			best = rule
		}
	}

	if best == nil {
		return WasteHousehold, Classification{
			SubType:     "general",
			Confidence:  0.3,
			HazardLevel: HazardLow,
			Explanation: "could not classify, defaulting to household waste",
		}
	}

	confidence := 0.6 + bestScore*0.3
	if confidence > 0.9 {
		confidence = 0.9
	}
	return best.wasteType, Classification{
		SubType:         "general",
		Confidence:      confidence,
		HazardLevel:     best.hazard,
		SpecialHandling: best.specialHandling,
		Explanation:     fmt.Sprintf("matched keywords for %s", best.wasteType),
	}
}
