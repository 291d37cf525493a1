package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const cleanJSON = `{
  "classification": {"sentiment": "negative", "themes": ["responsiveness", "preparation"], "credibilityImpact": -12, "urgency": "high"},
  "draftedResponse": "We're sorry about the delay, Jane. We'd like to make this right.",
  "reasoning": "Slow responses damage trust."
}`

func TestParseResponse_Stages(t *testing.T) {
	review := event.Finding{Author: "Jane D.", Rating: 2}

	cases := []struct {
		name      string
		text      string
		wantStage string
	}{
		{
			name:      "clean json",
			text:      cleanJSON,
			wantStage: StageDirect,
		},
		{
			name:      "markdown fenced",
			text:      "```json\n" + cleanJSON + "\n```",
			wantStage: StageExtracted,
		},
		{
			name:      "prose around object",
			text:      "Here is my analysis:\n" + cleanJSON + "\nHope this helps!",
			wantStage: StageExtracted,
		},
		{
			name: "trailing commas",
			text: `{"classification": {"sentiment": "negative", "themes": ["responsiveness",], "credibilityImpact": -12, "urgency": "high",},
			       "draftedResponse": "We're sorry about the delay, Jane. We'd like to make this right.", "reasoning": "Slow responses damage trust.",}`,
			wantStage: StageRepaired,
		},
		{
			name:      "fenced with trailing commas",
			text:      "```\n{\"classification\": {\"sentiment\": \"negative\", \"themes\": [\"responsiveness\"], \"credibilityImpact\": -12, \"urgency\": \"high\"}, \"draftedResponse\": \"We're sorry about the delay, Jane. We'd like to make this right.\",}\n```",
			wantStage: StageRepaired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, stage := ParseResponse(tc.text, review)
			assert.Equal(t, tc.wantStage, stage)
			assert.Equal(t, event.SentimentNegative, got.Classification.Sentiment)
			assert.Equal(t, -12, got.Classification.CredibilityImpact)
			assert.Equal(t, event.UrgencyHigh, got.Classification.Urgency)
			assert.Contains(t, got.Classification.Themes, "responsiveness")
			assert.NotEmpty(t, got.DraftedResponse)
		})
	}
}

func TestParseResponse_RepairLeavesStringsIntact(t *testing.T) {
	text := `{"classification": {"sentiment": "negative", "themes": ["responsiveness"], "credibilityImpact": -12, "urgency": "high",},
	          "draftedResponse": "Options were fine, ] but the \"delay, }\" was not.", "reasoning": "Mixed, }"}`

	got, stage := ParseResponse(text, event.Finding{Rating: 2})
	require.Equal(t, StageRepaired, stage)
	assert.Equal(t, `Options were fine, ] but the "delay, }" was not.`, got.DraftedResponse)
	assert.Equal(t, "Mixed, }", got.Reasoning)
}

func TestStripTrailingCommas(t *testing.T) {
	cases := map[string]string{
		`[1, 2,]`:              `[1, 2]`,
		"{\"a\": 1 ,\n }":      "{\"a\": 1 \n }",
		`{"a": "x, }"}`:        `{"a": "x, }"}`,
		`{"a": "\\", "b": 1,}`: `{"a": "\\", "b": 1}`,
		`["x\", ]",]`:          `["x\", ]"]`,
	}
	for in, want := range cases {
		assert.Equal(t, want, stripTrailingCommas(in), in)
	}
}

func TestParseResponse_FallbackFromRating(t *testing.T) {
	cases := []struct {
		rating        int
		wantSentiment event.Sentiment
		wantImpact    int
		wantUrgency   event.Urgency
	}{
		{5, event.SentimentPositive, 5, event.UrgencyLow},
		{4, event.SentimentPositive, 5, event.UrgencyLow},
		{3, event.SentimentNeutral, 0, event.UrgencyLow},
		{2, event.SentimentNegative, -8, event.UrgencyHigh},
		{1, event.SentimentNegative, -8, event.UrgencyHigh},
	}
	inputs := []string{
		"I cannot help with that.",
		"",
		"{not json at all",
		`{"classification": "oops"}`,
		`{"classification": {"sentiment": "furious", "themes": [], "credibilityImpact": -3, "urgency": "high"}, "draftedResponse": "x"}`,
	}
	for _, tc := range cases {
		for _, in := range inputs {
			got, stage := ParseResponse(in, event.Finding{Author: "Sam", Rating: tc.rating})
			require.Equal(t, StageFallback, stage, "input %q", in)
			assert.Equal(t, tc.wantSentiment, got.Classification.Sentiment)
			assert.Equal(t, tc.wantImpact, got.Classification.CredibilityImpact)
			assert.Equal(t, tc.wantUrgency, got.Classification.Urgency)
			assert.Contains(t, got.DraftedResponse, "Thank you")
			assert.NotEmpty(t, got.Reasoning)
		}
	}
}

func TestParseResponse_NormalizesImpact(t *testing.T) {
	cases := []struct {
		name       string
		sentiment  string
		impact     string
		wantImpact int
	}{
		{"clamped low", "negative", "-45", -20},
		{"clamped high", "positive", "25", 10},
		{"negative made negative", "negative", "4", -4},
		{"negative zero", "negative", "0", -1},
		{"rounded", "positive", "3.6", 4},
		{"neutral untouched", "neutral", "0", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := `{"classification": {"sentiment": "` + tc.sentiment + `", "themes": [], "credibilityImpact": ` + tc.impact +
				`, "urgency": "low"}, "draftedResponse": "Thanks!", "reasoning": "r"}`
			got, stage := ParseResponse(text, event.Finding{Rating: 3})
			require.Equal(t, StageDirect, stage)
			assert.Equal(t, tc.wantImpact, got.Classification.CredibilityImpact)
		})
	}
}
