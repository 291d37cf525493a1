package analyst

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

// feedbackWindow is how many of the most recent feedback entries reach the prompt.
const feedbackWindow = 5

// BuildPrompt renders the classification prompt for one review.
// Recent operator feedback is embedded so future drafts adapt in tone and content.
func BuildPrompt(review event.Finding, businessName string, feedback []event.FeedbackEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a credibility intelligence agent analyzing a customer review for %q.\n\n", businessName)
	b.WriteString("Review details:\n")
	fmt.Fprintf(&b, "- Author: %s\n", review.Author)
	fmt.Fprintf(&b, "- Rating: %d/5\n", review.Rating)
	fmt.Fprintf(&b, "- Text: %q\n", review.Text)

	if len(feedback) > 0 {
		if len(feedback) > feedbackWindow {
			feedback = feedback[len(feedback)-feedbackWindow:]
		}
		b.WriteString("\nPrevious feedback on your drafted responses (learn from this):\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "- You drafted: %q → Operator %s", f.Original, f.Feedback)
			if f.Modified != "" {
				fmt.Fprintf(&b, " and changed to: %q", f.Modified)
			}
			b.WriteString("\n")
		}
		b.WriteString("Adjust your tone and approach based on these signals.\n")
	}

	b.WriteString(`
Analyze this review and respond with ONLY valid JSON (no markdown, no code fences):
{
  "classification": {
    "sentiment": "positive" or "neutral" or "negative",
    "themes": ["theme1", "theme2"],
    "credibilityImpact": <integer from -20 to +10, negative reviews should be negative>,
    "urgency": "low" or "medium" or "high"
  },
  "draftedResponse": "<professional, empathetic response to post as a reply to this review, 2-3 sentences>",
  "reasoning": "<one sentence explaining your analysis>"
}`)
	return b.String()
}
