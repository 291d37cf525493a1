package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
	"github.com/gyaneshwarpardhi/credscout/internal/metrics"
)

// Action types recorded in event.ActionRecord.Type.
const (
	TypeCRMInbox     = "crm_inbox"
	TypeNotification = "intercom_alert"
	TypeEventStream  = "redpanda_event"
)

// Sink is one downstream side effect of a classified event.
type Sink interface {
	// Type returns the action type this sink records under.
	Type() string
	// Execute performs the side effect. An unconfigured sink returns
	// a skipped outcome and a nil error.
	Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) (event.ActionDetails, error)
}

// Resetter is implemented by sinks that hold process-scoped state
// (cached clients, contact ids, sticky failure flags).
type Resetter interface {
	Reset()
}

// Logger receives operator-facing log lines.
type Logger interface {
	Log(message string, typ event.LogType)
}

var successLines = map[string]string{
	TypeCRMInbox:     "Created inbox item in CRM",
	TypeNotification: "Sent Intercom notification",
	TypeEventStream:  "Published event to Redpanda stream",
}

var failurePrefixes = map[string]string{
	TypeCRMInbox:     "CRM inbox failed",
	TypeNotification: "Intercom failed",
	TypeEventStream:  "Redpanda publish failed",
}

// Executor fans an analysed event out to every registered sink.
type Executor struct {
	registry *Registry
	log      Logger
	now      func() time.Time
}

// NewExecutor creates an Executor over reg. log may be nil.
func NewExecutor(reg *Registry, log Logger) *Executor {
	return &Executor{registry: reg, log: log, now: time.Now}
}

// Execute runs all sinks concurrently and returns one record per sink, in
// registration order. It never fails: errors and panics become failed records.
func (x *Executor) Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) []event.ActionRecord {
	sinks := x.registry.Sinks()
	records := make([]event.ActionRecord, len(sinks))

	var wg sync.WaitGroup
	for i, s := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i] = x.run(ctx, s, ev, a)
		}()
	}
	wg.Wait()

	for _, r := range records {
		metrics.ActionsExecuted.WithLabelValues(r.Type, r.Details.Status).Inc()
		x.announce(r)
	}
	return records
}

func (x *Executor) run(ctx context.Context, s Sink, ev event.CredibilityEvent, a event.Analysis) (rec event.ActionRecord) {
	rec.Type = s.Type()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("action sink panicked", "type", rec.Type, "event_id", ev.ID, "panic", p)
			rec.Details = event.ActionDetails{Status: event.ActionFailed, Error: fmt.Sprintf("panic: %v", p)}
		}
		rec.Timestamp = x.now()
	}()

	details, err := s.Execute(ctx, ev, a)
	if err != nil {
		slog.Warn("action failed", "type", rec.Type, "event_id", ev.ID, "err", err)
		rec.Details = event.ActionDetails{Status: event.ActionFailed, Error: err.Error()}
		return rec
	}
	rec.Details = details
	return rec
}

func (x *Executor) announce(r event.ActionRecord) {
	if x.log == nil {
		return
	}
	switch r.Details.Status {
	case event.ActionSkipped:
	case event.ActionFailed:
		prefix, ok := failurePrefixes[r.Type]
		if !ok {
			prefix = r.Type + " failed"
		}
		x.log.Log(prefix+": "+r.Details.Error, event.LogError)
	default:
		line, ok := successLines[r.Type]
		if !ok {
			line = "Completed " + r.Type
		}
		x.log.Log(line, event.LogSuccess)
	}
}

// Reset clears process-scoped state held by any registered sink.
func (x *Executor) Reset() {
	x.registry.Reset()
}

// SuccessCount returns how many records did not fail.
func SuccessCount(records []event.ActionRecord) int {
	n := 0
	for _, r := range records {
		if r.Succeeded() {
			n++
		}
	}
	return n
}
