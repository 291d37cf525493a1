package scout

import (
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const (
	seedProfileRating  = 4.2
	seedProfileReviews = 47
)

// seedReviews is ordered for the demo flow: positive, negative, neutral, critical, good.
func seedReviews(now time.Time) []event.Finding {
	day := 24 * time.Hour
	return []event.Finding{
		{
			Author:      "Michael R.",
			Rating:      5,
			Text:        "Outstanding service from start to finish. Professional, knowledgeable, and always available when I had questions. Closed on my dream home in 3 weeks.",
			PublishedAt: now.Format(time.RFC3339),
			Source:      "google",
		},
		{
			Author:      "Jane D.",
			Rating:      2,
			Text:        "Very slow to respond to my inquiries. I waited 3 days for a callback and when they finally reached out, the agent seemed unprepared. Would not recommend.",
			PublishedAt: now.Add(-day).Format(time.RFC3339),
			Source:      "google",
		},
		{
			Author:      "Sarah K.",
			Rating:      3,
			Text:        "Decent experience overall but felt like they were juggling too many clients. Communication could be better. The end result was fine though.",
			PublishedAt: now.Add(-2 * day).Format(time.RFC3339),
			Source:      "google",
		},
		{
			Author:      "David L.",
			Rating:      1,
			Text:        "Terrible experience. Missed two scheduled showings and never apologized. Found a much better agent elsewhere. Save yourself the headache.",
			PublishedAt: now.Add(-3 * day).Format(time.RFC3339),
			Source:      "google",
		},
		{
			Author:      "Emily W.",
			Rating:      4,
			Text:        "Good overall. Very knowledgeable about the local market and helped us negotiate a fair price. Only downside was occasional slow email responses.",
			PublishedAt: now.Add(-4 * day).Format(time.RFC3339),
			Source:      "google",
		},
	}
}

// SeedCount is the number of built-in seed reviews.
const SeedCount = 5
