package action_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

type fakeSink struct {
	typ     string
	details event.ActionDetails
	err     error
	panics  bool
	resets  int
}

func (f *fakeSink) Type() string { return f.typ }

func (f *fakeSink) Execute(context.Context, event.CredibilityEvent, event.Analysis) (event.ActionDetails, error) {
	if f.panics {
		panic("boom")
	}
	return f.details, f.err
}

func (f *fakeSink) Reset() { f.resets++ }

type memLog struct {
	mu    sync.Mutex
	lines []string
	types []event.LogType
}

func (m *memLog) Log(msg string, typ event.LogType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, msg)
	m.types = append(m.types, typ)
}

func sinks(crm, notify, stream *fakeSink) *action.Registry {
	crm.typ = action.TypeCRMInbox
	notify.typ = action.TypeNotification
	stream.typ = action.TypeEventStream
	return action.NewRegistry(crm, notify, stream)
}

func TestExecutor_AlwaysThreeRecords(t *testing.T) {
	ok := func(status string) *fakeSink { return &fakeSink{details: event.ActionDetails{Status: status}} }
	failing := func() *fakeSink { return &fakeSink{err: errors.New("down")} }
	panicking := func() *fakeSink { return &fakeSink{panics: true} }

	cases := []struct {
		name        string
		crm, n, s   *fakeSink
		wantStatus  []string
		wantSuccess int
	}{
		{"all succeed", ok(event.ActionCreated), ok(event.ActionSent), ok(event.ActionPublished),
			[]string{event.ActionCreated, event.ActionSent, event.ActionPublished}, 3},
		{"all skipped", ok(event.ActionSkipped), ok(event.ActionSkipped), ok(event.ActionSkipped),
			[]string{event.ActionSkipped, event.ActionSkipped, event.ActionSkipped}, 3},
		{"one fails", ok(event.ActionCreated), failing(), ok(event.ActionPublished),
			[]string{event.ActionCreated, event.ActionFailed, event.ActionPublished}, 2},
		{"all fail", failing(), panicking(), failing(),
			[]string{event.ActionFailed, event.ActionFailed, event.ActionFailed}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := action.NewExecutor(sinks(tc.crm, tc.n, tc.s), nil)
			records := x.Execute(context.Background(), event.CredibilityEvent{ID: "e"}, event.Analysis{})

			require.Len(t, records, 3)
			for i, r := range records {
				assert.Equal(t, tc.wantStatus[i], r.Details.Status)
				assert.False(t, r.Timestamp.IsZero())
			}
			assert.Equal(t, []string{action.TypeCRMInbox, action.TypeNotification, action.TypeEventStream},
				[]string{records[0].Type, records[1].Type, records[2].Type})
			assert.Equal(t, tc.wantSuccess, action.SuccessCount(records))
		})
	}
}

func TestExecutor_PanicBecomesFailedRecord(t *testing.T) {
	x := action.NewExecutor(sinks(&fakeSink{panics: true}, &fakeSink{}, &fakeSink{}), nil)
	records := x.Execute(context.Background(), event.CredibilityEvent{}, event.Analysis{})
	assert.Equal(t, event.ActionFailed, records[0].Details.Status)
	assert.Contains(t, records[0].Details.Error, "panic: boom")
}

func TestExecutor_LogsOutcomes(t *testing.T) {
	log := &memLog{}
	x := action.NewExecutor(sinks(
		&fakeSink{details: event.ActionDetails{Status: event.ActionCreated}},
		&fakeSink{err: errors.New("Intercom conversation failed (500): oops")},
		&fakeSink{details: event.ActionDetails{Status: event.ActionSkipped}},
	), log)

	x.Execute(context.Background(), event.CredibilityEvent{}, event.Analysis{})

	assert.Equal(t, []string{
		"Created inbox item in CRM",
		"Intercom failed: Intercom conversation failed (500): oops",
	}, log.lines)
	assert.Equal(t, []event.LogType{event.LogSuccess, event.LogError}, log.types)
}

func TestExecutor_ResetReachesSinks(t *testing.T) {
	a, b, c := &fakeSink{}, &fakeSink{}, &fakeSink{}
	x := action.NewExecutor(sinks(a, b, c), nil)
	x.Reset()
	assert.Equal(t, []int{1, 1, 1}, []int{a.resets, b.resets, c.resets})
}

func TestRegistry(t *testing.T) {
	reg := sinks(&fakeSink{}, &fakeSink{}, &fakeSink{})

	assert.Equal(t, []string{action.TypeCRMInbox, action.TypeNotification, action.TypeEventStream}, reg.Types())

	s, err := reg.Get(action.TypeEventStream)
	require.NoError(t, err)
	assert.Equal(t, action.TypeEventStream, s.Type())

	_, err = reg.Get("fax")
	assert.Error(t, err)

	assert.Panics(t, func() { reg.Register(&fakeSink{typ: action.TypeCRMInbox}) })
}
