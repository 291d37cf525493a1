package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const (
	// InitialScore is the credibility score after construction or Reset.
	InitialScore = 87

	minScore = 0
	maxScore = 100
)

// NewEvent holds the caller-supplied fields of a CredibilityEvent.
// The store assigns ID, DetectedAt, ActionsTaken and Status.
type NewEvent struct {
	BusinessID   string
	BusinessName string
	EventType    string
	Source       string
	Severity     event.Severity
	RawData      event.Finding
}

// Patch is a partial update merged into an event by UpdateEvent.
// Nil fields are left untouched, so a patch can never clear a field.
type Patch struct {
	Status          *event.Status
	Classification  *event.Classification
	ResponseDrafted *string
	AppendActions   []event.ActionRecord
	HumanFeedback   *event.Feedback

	// ScoreDelta is applied to the score in the same critical section, and
	// only if the event still exists.
	ScoreDelta *int
}

// Snapshot is a consistent copy of everything the read API exposes.
type Snapshot struct {
	Events []event.CredibilityEvent `json:"events"`
	Logs   []event.LogEntry         `json:"logs"`
	Score  event.ScoreState         `json:"score"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithUpdateHook registers fn to observe every successful UpdateEvent.
// fn receives a copy and runs while the store lock is held; it must not call back into the store.
func WithUpdateHook(fn func(event.CredibilityEvent)) Option {
	return func(s *Store) { s.onUpdate = fn }
}

// Store is the authoritative in-process record of events, score, logs and feedback.
// Every method runs to completion without blocking on I/O; reads return copies.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	onUpdate  func(event.CredibilityEvent)
	events    []*event.CredibilityEvent // most recent first
	score     int
	history   []event.ScorePoint
	logs      []event.LogEntry // most recent first
	feedback  []event.FeedbackEntry
	scanCount int
}

// New creates a Store in its initial state.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.resetLocked()
	return s
}

// Reset restores the initial score and seeded history and clears events, logs, feedback and the scan counter.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	now := s.now()
	s.events = nil
	s.score = InitialScore
	s.history = []event.ScorePoint{
		{Score: 92, Timestamp: now.Add(-2 * time.Hour)},
		{Score: 90, Timestamp: now.Add(-1 * time.Hour)},
		{Score: InitialScore, Timestamp: now},
	}
	s.logs = nil
	s.feedback = nil
	s.scanCount = 0
}

// AddEvent creates a new event in state detected and prepends it to the event list.
func (s *Store) AddEvent(in NewEvent) event.CredibilityEvent {
	ev := &event.CredibilityEvent{
		ID:           uuid.New().String(),
		BusinessID:   in.BusinessID,
		BusinessName: in.BusinessName,
		EventType:    in.EventType,
		Source:       in.Source,
		Severity:     in.Severity,
		RawData:      in.RawData,
		DetectedAt:   s.now(),
		ActionsTaken: []event.ActionRecord{},
		Status:       event.StatusDetected,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]*event.CredibilityEvent{ev}, s.events...)
	return ev.Clone()
}

// UpdateEvent merges p into the event with the given id.
// It returns false if no such event exists. Status changes that are not legal
// lifecycle transitions are dropped.
func (s *Store) UpdateEvent(id string, p Patch) (event.CredibilityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.findLocked(id)
	if ev == nil {
		return event.CredibilityEvent{}, false
	}

	if p.Classification != nil {
		c := *p.Classification
		c.Themes = append([]string(nil), p.Classification.Themes...)
		ev.Classification = &c
	}
	if p.ResponseDrafted != nil {
		r := *p.ResponseDrafted
		ev.ResponseDrafted = &r
	}
	if len(p.AppendActions) > 0 {
		ev.ActionsTaken = append(ev.ActionsTaken, p.AppendActions...)
	}
	if p.HumanFeedback != nil {
		f := *p.HumanFeedback
		ev.HumanFeedback = &f
	}
	if p.Status != nil && *p.Status != ev.Status {
		if event.CanTransition(ev.Status, *p.Status) {
			ev.Status = *p.Status
		} else {
			slog.Warn("store: illegal status transition ignored",
				"event_id", id, "from", ev.Status, "to", *p.Status)
		}
	}
	if p.ScoreDelta != nil {
		s.applyScoreLocked(*p.ScoreDelta)
	}

	out := ev.Clone()
	if s.onUpdate != nil {
		s.onUpdate(out.Clone())
	}
	return out, true
}

// GetEvent returns a copy of the event with the given id.
func (s *Store) GetEvent(id string) (event.CredibilityEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev := s.findLocked(id)
	if ev == nil {
		return event.CredibilityEvent{}, false
	}
	return ev.Clone(), true
}

// Events returns copies of all events, most recent first.
func (s *Store) Events() []event.CredibilityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsLocked()
}

func (s *Store) eventsLocked() []event.CredibilityEvent {
	out := make([]event.CredibilityEvent, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Clone()
	}
	return out
}

func (s *Store) findLocked(id string) *event.CredibilityEvent {
	for _, ev := range s.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

// UpdateScore applies delta, clamps to [0, 100] and appends a history entry.
func (s *Store) UpdateScore(delta int) event.ScoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyScoreLocked(delta)
	return s.scoreLocked()
}

func (s *Store) applyScoreLocked(delta int) {
	s.score = clamp(s.score+delta, minScore, maxScore)
	s.history = append(s.history, event.ScorePoint{Score: s.score, Timestamp: s.now()})
}

// Score returns the current score and a copy of its history.
func (s *Store) Score() event.ScoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreLocked()
}

func (s *Store) scoreLocked() event.ScoreState {
	return event.ScoreState{
		Current: s.score,
		History: append([]event.ScorePoint(nil), s.history...),
	}
}

// Log prepends a line to the agent log.
func (s *Store) Log(message string, typ event.LogType) {
	s.mu.Lock()
	s.logs = append([]event.LogEntry{{Message: message, Timestamp: s.now(), Type: typ}}, s.logs...)
	s.mu.Unlock()
	slog.Debug("agent log", "type", typ, "msg", message)
}

// Logs returns the agent log, most recent first.
func (s *Store) Logs() []event.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.LogEntry{}, s.logs...)
}

// AddFeedback appends an operator feedback entry.
func (s *Store) AddFeedback(entry event.FeedbackEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, entry)
}

// FeedbackHistory returns all feedback entries, oldest first.
func (s *Store) FeedbackHistory() []event.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.FeedbackEntry(nil), s.feedback...)
}

// NextScanIndex returns the scan counter and increments it.
func (s *Store) NextScanIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.scanCount
	s.scanCount++
	return idx
}

// Snapshot returns events, logs and score taken under a single lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Events: s.eventsLocked(),
		Logs:   append([]event.LogEntry{}, s.logs...),
		Score:  s.scoreLocked(),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
