package analyst

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

// Parse stages, in cascade order.
const (
	StageDirect    = "direct"
	StageExtracted = "extracted"
	StageRepaired  = "repaired"
	StageFallback  = "fallback"
)

const (
	minImpact = -20
	maxImpact = 10
)

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

type rawAnalysis struct {
	Classification struct {
		Sentiment         event.Sentiment `json:"sentiment"`
		Themes            []string        `json:"themes"`
		CredibilityImpact float64         `json:"credibilityImpact"`
		Urgency           event.Urgency   `json:"urgency"`
	} `json:"classification"`
	DraftedResponse string `json:"draftedResponse"`
	Reasoning       string `json:"reasoning"`
}

// ParseResponse runs the recovery cascade over raw model output:
// the text as-is, then the outermost {...} substring, then both again with
// trailing commas removed. When nothing validates it returns the
// rating-derived fallback. It never fails.
func ParseResponse(text string, review event.Finding) (event.Analysis, string) {
	if a, err := decode(text); err == nil {
		return a, StageDirect
	}

	extracted := objectPattern.FindString(text)
	if extracted != "" {
		if a, err := decode(extracted); err == nil {
			return a, StageExtracted
		}
	}

	for _, candidate := range []string{text, extracted} {
		if candidate == "" {
			continue
		}
		if a, err := decode(stripTrailingCommas(candidate)); err == nil {
			return a, StageRepaired
		}
	}

	return Fallback(review), StageFallback
}

// stripTrailingCommas drops commas that directly precede a closing } or ]
// (whitespace aside). Commas inside string literals are left alone.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func decode(s string) (event.Analysis, error) {
	var generic any
	if err := json.Unmarshal([]byte(s), &generic); err != nil {
		return event.Analysis{}, err
	}
	if err := analysisSchema.Validate(generic); err != nil {
		return event.Analysis{}, fmt.Errorf("schema: %w", err)
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return event.Analysis{}, err
	}
	return normalize(raw), nil
}

// normalize clamps the impact into range and makes negative reviews cost points.
func normalize(raw rawAnalysis) event.Analysis {
	c := raw.Classification
	impact := int(math.Round(c.CredibilityImpact))
	if impact < minImpact {
		impact = minImpact
	}
	if impact > maxImpact {
		impact = maxImpact
	}
	if c.Sentiment == event.SentimentNegative && impact >= 0 {
		impact = -max(impact, 1)
	}
	themes := c.Themes
	if themes == nil {
		themes = []string{}
	}
	return event.Analysis{
		Classification: event.Classification{
			Sentiment:         c.Sentiment,
			Themes:            themes,
			CredibilityImpact: impact,
			Urgency:           c.Urgency,
		},
		DraftedResponse: raw.DraftedResponse,
		Reasoning:       raw.Reasoning,
	}
}

// Fallback derives a deterministic analysis from the star rating alone.
func Fallback(review event.Finding) event.Analysis {
	c := event.Classification{
		Sentiment:         event.SentimentNeutral,
		Themes:            []string{"general"},
		CredibilityImpact: 0,
		Urgency:           event.UrgencyLow,
	}
	switch {
	case review.Rating >= 4:
		c.Sentiment = event.SentimentPositive
		c.CredibilityImpact = 5
	case review.Rating <= 2:
		c.Sentiment = event.SentimentNegative
		c.CredibilityImpact = -8
		c.Urgency = event.UrgencyHigh
	}

	name := review.Author
	if name == "" {
		name = "there"
	}
	return event.Analysis{
		Classification: c,
		DraftedResponse: fmt.Sprintf("Thank you for taking the time to share your feedback, %s. "+
			"We appreciate hearing from our clients and will use your comments to keep improving.", name),
		Reasoning: fmt.Sprintf("Model output could not be parsed; classification derived from the %d-star rating.", review.Rating),
	}
}
