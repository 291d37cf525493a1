package scout

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
	"github.com/gyaneshwarpardhi/credscout/internal/metrics"
)

const (
	datasetItemLimit    = 10
	defaultRating       = 3
	defaultProfileName  = "Business"
	defaultReviewSource = "google"
	defaultReviewAuthor = "Anonymous"
	tierDataset         = "dataset"
	tierScrape          = "scrape"
	tierSeed            = "seed"
)

// Profile is aggregate metadata about the business being scanned.
type Profile struct {
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"totalReviews"`
	Name         string  `json:"name"`
}

// Result is what one scan yields.
type Result struct {
	Reviews []event.Finding `json:"reviews"`
	Profile *Profile        `json:"profileData,omitempty"`
	// Tier names the fallback tier that produced Reviews.
	Tier string `json:"tier"`
}

// Counter hands out the monotonically increasing scan index.
type Counter interface {
	NextScanIndex() int
}

// Config selects which fallback tiers are available.
type Config struct {
	// DatasetID enables the pre-fetched dataset tier.
	DatasetID string
	// ScrapeEnabled enables the live scrape-job tier (requires an API token).
	ScrapeEnabled bool
}

// Scout produces one review finding per scan through a three-tier fallback chain:
// stored dataset, live scrape job, then a fixed seed list. It never fails.
type Scout struct {
	cfg     Config
	source  DatasetSource
	counter Counter
	intn    func(n int) int
	now     func() time.Time
}

// New creates a Scout. source may be nil when neither remote tier is configured;
// counter may be nil, in which case the seed tier picks at random.
func New(cfg Config, source DatasetSource, counter Counter) *Scout {
	return &Scout{
		cfg:     cfg,
		source:  source,
		counter: counter,
		intn:    rand.IntN,
		now:     time.Now,
	}
}

// Scan runs the fallback chain for the given location reference.
func (s *Scout) Scan(ctx context.Context, locationRef, businessName string) Result {
	var profile *Profile

	if s.cfg.DatasetID != "" && s.source != nil {
		items, err := s.source.ListItems(ctx, s.cfg.DatasetID, datasetItemLimit)
		if err != nil {
			slog.Warn("scout: dataset fetch failed", "dataset_id", s.cfg.DatasetID, "err", err)
			metrics.ScoutTierFailures.WithLabelValues(tierDataset).Inc()
		} else {
			res := s.fromItems(items)
			profile = res.Profile
			if len(res.Reviews) > 0 {
				res.Tier = tierDataset
				metrics.ScoutTierUsed.WithLabelValues(tierDataset).Inc()
				return res
			}
		}
	}

	if s.cfg.ScrapeEnabled && s.source != nil && locationRef != "" && profile == nil {
		items, err := s.source.RunScrape(ctx, locationRef, datasetItemLimit)
		if err != nil {
			slog.Warn("scout: scrape job failed", "location_ref", locationRef, "err", err)
			metrics.ScoutTierFailures.WithLabelValues(tierScrape).Inc()
		} else {
			res := s.fromItems(items)
			profile = res.Profile
			if len(res.Reviews) > 0 {
				res.Tier = tierScrape
				metrics.ScoutTierUsed.WithLabelValues(tierScrape).Inc()
				return res
			}
		}
	}

	res := s.seed(businessName)
	if profile != nil {
		res.Profile = profile
	}
	metrics.ScoutTierUsed.WithLabelValues(tierSeed).Inc()
	return res
}

// fromItems flattens embedded reviews of all items and picks one by the scan counter.
func (s *Scout) fromItems(items []Item) Result {
	if len(items) == 0 {
		return Result{}
	}

	var reviews []event.Finding
	for _, place := range items {
		raw, _ := place["reviews"].([]any)
		for _, r := range raw {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			reviews = append(reviews, s.findingFrom(m))
		}
	}

	res := Result{Profile: profileFrom(items[0])}
	if len(reviews) > 0 {
		res.Reviews = []event.Finding{reviews[s.pick(len(reviews))]}
	}
	return res
}

func (s *Scout) findingFrom(m map[string]any) event.Finding {
	author := pickStr(m, "name", "author")
	if author == "" {
		author = defaultReviewAuthor
	}
	rating := defaultRating
	if n, ok := pickNum(m, "stars", "rating"); ok {
		rating = clampRating(int(math.Round(n)))
	}
	published := pickStr(m, "publishedAtDate")
	if published == "" {
		published = s.now().UTC().Format(time.RFC3339)
	}
	return event.Finding{
		Author:      author,
		Rating:      rating,
		Text:        pickStr(m, "text", "snippet"),
		PublishedAt: published,
		Source:      defaultReviewSource,
	}
}

func profileFrom(item Item) *Profile {
	p := &Profile{Rating: seedProfileRating, TotalReviews: seedProfileReviews, Name: defaultProfileName}
	if r, ok := pickNum(item, "totalScore", "rating"); ok {
		p.Rating = r
	}
	if n, ok := pickNum(item, "reviewsCount"); ok {
		p.TotalReviews = int(n)
	}
	if name := pickStr(item, "title"); name != "" {
		p.Name = name
	}
	return p
}

func (s *Scout) seed(businessName string) Result {
	reviews := seedReviews(s.now())
	return Result{
		Reviews: []event.Finding{reviews[s.pick(len(reviews))]},
		Profile: &Profile{Rating: seedProfileRating, TotalReviews: seedProfileReviews, Name: businessName},
		Tier:    tierSeed,
	}
}

// pick chooses an index in [0, n) from the scan counter, or at random without one.
func (s *Scout) pick(n int) int {
	if s.counter == nil {
		return s.intn(n)
	}
	return s.counter.NextScanIndex() % n
}

func clampRating(r int) int {
	if r < 1 {
		return 1
	}
	if r > 5 {
		return 5
	}
	return r
}
