package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
	"github.com/gyaneshwarpardhi/credscout/internal/metrics"
	"github.com/gyaneshwarpardhi/credscout/internal/scout"
	"github.com/gyaneshwarpardhi/credscout/internal/store"
)

var (
	// ErrQueueFull is returned when a cycle cannot be enqueued.
	ErrQueueFull = errors.New("cycle queue full")
	// ErrEventNotFound is returned by RecordFeedback for an unknown event id.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidFeedback is returned by RecordFeedback for anything but accepted/rejected.
	ErrInvalidFeedback = errors.New("feedback must be accepted or rejected")
)

// Scanner is the ingestion stage.
type Scanner interface {
	Scan(ctx context.Context, locationRef, businessName string) scout.Result
}

// Classifier is the analysis stage. Any returned error is a hard failure for that event.
type Classifier interface {
	Analyze(ctx context.Context, review event.Finding, businessName string, feedback []event.FeedbackEntry) (event.Analysis, error)
}

// ActionRunner fans an analysed event out to the downstream sinks.
type ActionRunner interface {
	Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) []event.ActionRecord
	Reset()
}

// Pipeline is the set of stages one cycle runs through. It is swapped as a
// unit on config reload; a cycle in flight keeps the pipeline it started with.
type Pipeline struct {
	Scout   Scanner
	Analyst Classifier
	Actions ActionRunner
}

// Request identifies the business a cycle scans.
type Request struct {
	BusinessID   string `json:"businessId"`
	BusinessName string `json:"businessName"`
	PlaceID      string `json:"placeId"`
}

// CycleResult is the outcome of one completed cycle.
type CycleResult struct {
	Request    Request        `json:"request"`
	Tier       string         `json:"tier"`
	EventIDs   []string       `json:"eventIds"`
	DurationMs int64          `json:"durationMs"`
	Snapshot   store.Snapshot `json:"snapshot"`
}

// Options tunes the orchestrator.
type Options struct {
	// AnalyzingDelay and ActingDelay hold an event in its intermediate state
	// long enough for pollers to observe it.
	AnalyzingDelay time.Duration
	ActingDelay    time.Duration
	QueueDepth     int
	// SyncTimeout bounds how long RunSync waits for its cycle.
	SyncTimeout time.Duration
}

type cycleWork struct {
	req     Request
	resultC chan *CycleResult
}

// Engine runs cycles one at a time against a single Store.
type Engine struct {
	store    *store.Store
	pipeline atomic.Pointer[Pipeline]
	pool     *workerPool[*cycleWork, *CycleResult]
	opts     Options
}

// New creates an Engine and starts its cycle worker. Cycles run on ctx, not on
// the caller's context, so a detached cycle outlives its HTTP request.
func New(ctx context.Context, st *store.Store, p *Pipeline, opts Options) *Engine {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 8
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 3 * time.Minute
	}
	e := &Engine{store: st, opts: opts}
	e.pipeline.Store(p)

	// One worker: cycles never overlap.
	e.pool = newWorkerPool[*cycleWork, *CycleResult](
		ctx,
		1,
		opts.QueueDepth,
		func(ctx context.Context, w *cycleWork) (*CycleResult, error) {
			res := e.runCycle(ctx, w.req)
			if w.resultC != nil {
				w.resultC <- res
			}
			e.updateQueueGauge()
			return res, nil
		},
	)
	metrics.CredibilityScore.Set(float64(st.Score().Current))
	return e
}

// SwapPipeline atomically replaces the pipeline (used on hot-reload).
func (e *Engine) SwapPipeline(p *Pipeline) {
	e.pipeline.Store(p)
}

// Store returns the engine's event store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// RunSync runs a cycle and waits for it, returning the final snapshot.
// Returns ErrQueueFull if the queue is full.
func (e *Engine) RunSync(ctx context.Context, req Request) (*CycleResult, error) {
	resultC := make(chan *CycleResult, 1)
	if !e.pool.Submit(&cycleWork{req: req, resultC: resultC}) {
		metrics.CyclesDropped.Inc()
		return nil, ErrQueueFull
	}
	metrics.CyclesStarted.WithLabelValues("sync").Inc()
	e.updateQueueGauge()

	timer := time.NewTimer(e.opts.SyncTimeout)
	defer timer.Stop()
	select {
	case res := <-resultC:
		return res, nil
	case <-timer.C:
		return nil, fmt.Errorf("cycle timeout after %v", e.opts.SyncTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trigger enqueues a cycle and returns immediately; progress is observed by
// polling the store. Returns ErrQueueFull if the queue is full.
func (e *Engine) Trigger(req Request) error {
	if !e.pool.Submit(&cycleWork{req: req}) {
		metrics.CyclesDropped.Inc()
		return ErrQueueFull
	}
	metrics.CyclesStarted.WithLabelValues("detached").Inc()
	e.updateQueueGauge()
	return nil
}

// RecordFeedback stores an operator verdict on an event's drafted response.
// Unknown verdicts and unknown event ids leave the store untouched.
func (e *Engine) RecordFeedback(eventID string, fb event.Feedback, modified string) error {
	if !fb.Valid() {
		return ErrInvalidFeedback
	}
	ev, ok := e.store.GetEvent(eventID)
	if !ok {
		return ErrEventNotFound
	}
	if _, ok := e.store.UpdateEvent(eventID, store.Patch{HumanFeedback: &fb}); !ok {
		// Reset raced us.
		return ErrEventNotFound
	}

	original := ""
	if ev.ResponseDrafted != nil {
		original = *ev.ResponseDrafted
	}
	e.store.AddFeedback(event.FeedbackEntry{
		EventID:  eventID,
		Feedback: fb,
		Original: original,
		Modified: modified,
	})
	e.store.Log(fmt.Sprintf("Operator %s drafted response — learning signal recorded", fb), event.LogSuccess)
	return nil
}

// Reset returns the store to its initial state and clears process-scoped sink state.
func (e *Engine) Reset() {
	e.store.Reset()
	if p := e.pipeline.Load(); p != nil && p.Actions != nil {
		p.Actions.Reset()
	}
	metrics.CredibilityScore.Set(float64(e.store.Score().Current))
	e.store.Log("Agent reset — ready for new demo cycle", event.LogInfo)
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

func (e *Engine) updateQueueGauge() {
	metrics.QueueUtilization.Set(e.QueueUtilization())
}

// Shutdown drains the cycle queue gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) runCycle(ctx context.Context, req Request) *CycleResult {
	start := time.Now()
	p := e.pipeline.Load()

	e.store.Log(fmt.Sprintf("Scout scanning for %s...", req.BusinessName), event.LogInfo)
	found := p.Scout.Scan(ctx, req.PlaceID, req.BusinessName)

	msg := fmt.Sprintf("Found %d review(s)", len(found.Reviews))
	if found.Profile != nil {
		msg += fmt.Sprintf(" — profile rating: %v", found.Profile.Rating)
	}
	e.store.Log(msg, event.LogInfo)

	res := &CycleResult{Request: req, Tier: found.Tier, EventIDs: make([]string, 0, len(found.Reviews))}
	for _, review := range found.Reviews {
		id, live := e.processFinding(ctx, p, req, review)
		res.EventIDs = append(res.EventIDs, id)
		if !live {
			// The store was reset under us; the rest of this cycle belongs to a discarded state.
			slog.Info("cycle abandoned after reset", "business_id", req.BusinessID, "event_id", id)
			break
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()
	metrics.CycleDuration.Observe(float64(res.DurationMs))
	slog.Info("cycle finished",
		"business_id", req.BusinessID,
		"tier", found.Tier,
		"events", len(res.EventIDs),
		"duration_ms", res.DurationMs)

	res.Snapshot = e.store.Snapshot()
	return res
}

// processFinding drives one finding through detected → analyzing → acting → complete,
// or into error. It returns the new event's id, and false if the event vanished
// from the store (a reset mid-cycle), in which case nothing more is written.
func (e *Engine) processFinding(ctx context.Context, p *Pipeline, req Request, review event.Finding) (string, bool) {
	source := review.Source
	if source == "" {
		source = "google"
	}
	ev := e.store.AddEvent(store.NewEvent{
		BusinessID:   req.BusinessID,
		BusinessName: req.BusinessName,
		EventType:    event.EventTypeReviewDetected,
		Source:       source,
		Severity:     event.SeverityForRating(review.Rating),
		RawData:      review,
	})

	logType := event.LogInfo
	if review.Rating <= 2 {
		logType = event.LogError
	}
	e.store.Log(fmt.Sprintf("%d-star review from %s — classifying...", review.Rating, review.Author), logType)
	if !e.setStatus(ev.ID, event.StatusAnalyzing) {
		return ev.ID, false
	}

	if err := sleep(ctx, e.opts.AnalyzingDelay); err != nil {
		return ev.ID, e.fail(ev, err)
	}

	analysis, err := p.Analyst.Analyze(ctx, review, req.BusinessName, e.store.FeedbackHistory())
	if err != nil {
		return ev.ID, e.fail(ev, err)
	}

	c := analysis.Classification
	acting := event.StatusActing
	updated, ok := e.store.UpdateEvent(ev.ID, store.Patch{
		Classification:  &c,
		ResponseDrafted: &analysis.DraftedResponse,
		Status:          &acting,
	})
	if !ok {
		return ev.ID, false
	}
	logType = event.LogSuccess
	if c.Sentiment == event.SentimentNegative {
		logType = event.LogError
	}
	e.store.Log(fmt.Sprintf("Classified: %s (%s pts) — %s", c.Sentiment, signed(c.CredibilityImpact), analysis.Reasoning), logType)

	if err := sleep(ctx, e.opts.ActingDelay); err != nil {
		return ev.ID, e.fail(ev, err)
	}

	records := p.Actions.Execute(ctx, updated, analysis)

	complete := event.StatusComplete
	if _, ok := e.store.UpdateEvent(ev.ID, store.Patch{
		AppendActions: records,
		Status:        &complete,
		ScoreDelta:    &c.CredibilityImpact,
	}); !ok {
		return ev.ID, false
	}
	metrics.CredibilityScore.Set(float64(e.store.Score().Current))
	metrics.EventsFinished.WithLabelValues(string(event.StatusComplete), string(ev.Severity)).Inc()

	e.store.Log(fmt.Sprintf("Pipeline complete: %d/%d actions succeeded", action.SuccessCount(records), len(records)), event.LogSuccess)
	return ev.ID, true
}

func (e *Engine) setStatus(id string, s event.Status) bool {
	_, ok := e.store.UpdateEvent(id, store.Patch{Status: &s})
	return ok
}

// fail moves an event to error. The score is not touched.
// It reports false if the event no longer exists.
func (e *Engine) fail(ev event.CredibilityEvent, err error) bool {
	slog.Warn("event failed", "event_id", ev.ID, "err", err)
	if !e.setStatus(ev.ID, event.StatusError) {
		return false
	}
	metrics.EventsFinished.WithLabelValues(string(event.StatusError), string(ev.Severity)).Inc()
	e.store.Log("Error processing review: "+err.Error(), event.LogError)
	return true
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
