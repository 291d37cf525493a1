package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

type fakeIntercom struct {
	mu           sync.Mutex
	calls        map[string]int
	searchResult string
	createStatus int
	createBody   string
	convoStatus  int
	lastConvo    map[string]any
}

func (f *fakeIntercom) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[r.URL.Path]++
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2.11", r.Header.Get("Intercom-Version"))

		switch r.URL.Path {
		case "/contacts/search":
			_, _ = w.Write([]byte(f.searchResult))
		case "/contacts":
			w.WriteHeader(f.createStatus)
			_, _ = w.Write([]byte(f.createBody))
		case "/conversations":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastConvo))
			w.WriteHeader(f.convoStatus)
			_, _ = w.Write([]byte(`{"conversation_id": "123"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newFake() *fakeIntercom {
	return &fakeIntercom{
		calls:        map[string]int{},
		searchResult: `{"data": []}`,
		createStatus: http.StatusOK,
		createBody:   `{"id": "created1"}`,
		convoStatus:  http.StatusOK,
	}
}

func review() (event.CredibilityEvent, event.Analysis) {
	ev := event.CredibilityEvent{RawData: event.Finding{Author: "David L.", Rating: 1, Text: "Terrible"}}
	a := event.Analysis{
		Classification:  event.Classification{Sentiment: event.SentimentNegative, CredibilityImpact: -15, Urgency: event.UrgencyHigh},
		DraftedResponse: "We apologise.",
	}
	return ev, a
}

func TestSink_SkipsWithoutToken(t *testing.T) {
	ev, a := review()
	d, err := New(Config{}).Execute(context.Background(), ev, a)
	require.NoError(t, err)
	assert.Equal(t, event.ActionSkipped, d.Status)
}

func TestSink_ContactResolution(t *testing.T) {
	cases := []struct {
		name        string
		setup       func(f *fakeIntercom)
		wantContact string
		wantCreates int
	}{
		{
			name:        "found by search",
			setup:       func(f *fakeIntercom) { f.searchResult = `{"data": [{"id": "found1"}]}` },
			wantContact: "found1",
		},
		{
			name:        "created",
			setup:       func(f *fakeIntercom) {},
			wantContact: "created1",
			wantCreates: 1,
		},
		{
			name: "recovered from conflict",
			setup: func(f *fakeIntercom) {
				f.createStatus = http.StatusConflict
				f.createBody = `{"errors": [{"code": "conflict", "message": "A contact matching those details already exists with id=6543abc"}]}`
			},
			wantContact: "6543abc",
			wantCreates: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFake()
			tc.setup(f)
			srv := httptest.NewServer(f.handler(t))
			defer srv.Close()

			s := New(Config{BaseURL: srv.URL, AccessToken: "tok", DashboardURL: "https://dash.example"})
			ev, a := review()
			d, err := s.Execute(context.Background(), ev, a)
			require.NoError(t, err)
			assert.Equal(t, event.ActionSent, d.Status)
			assert.Equal(t, "123", d.ID)
			assert.Equal(t, tc.wantCreates, f.calls["/contacts"])

			from := f.lastConvo["from"].(map[string]any)
			assert.Equal(t, tc.wantContact, from["id"])
			assert.Equal(t, "user", from["type"])
		})
	}
}

func TestSink_CachesContactUntilReset(t *testing.T) {
	f := newFake()
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, AccessToken: "tok"})
	ev, a := review()
	for i := 0; i < 3; i++ {
		_, err := s.Execute(context.Background(), ev, a)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.calls["/contacts/search"])
	assert.Equal(t, 3, f.calls["/conversations"])

	s.Reset()
	_, err := s.Execute(context.Background(), ev, a)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls["/contacts/search"])
}

func TestSink_Failures(t *testing.T) {
	t.Run("contact creation", func(t *testing.T) {
		f := newFake()
		f.createStatus = http.StatusUnauthorized
		f.createBody = `{"type": "error.list"}`
		srv := httptest.NewServer(f.handler(t))
		defer srv.Close()

		ev, a := review()
		_, err := New(Config{BaseURL: srv.URL, AccessToken: "tok"}).Execute(context.Background(), ev, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contact creation failed (401)")
		assert.Zero(t, f.calls["/conversations"])
	})

	t.Run("conversation", func(t *testing.T) {
		f := newFake()
		f.convoStatus = http.StatusUnprocessableEntity
		srv := httptest.NewServer(f.handler(t))
		defer srv.Close()

		ev, a := review()
		_, err := New(Config{BaseURL: srv.URL, AccessToken: "tok"}).Execute(context.Background(), ev, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conversation failed (422)")
	})
}

func TestRenderAlert(t *testing.T) {
	ev, a := review()
	body := RenderAlert(ev.RawData, a, "https://dash.example")
	assert.Contains(t, body, "<b>HIGH: 1-star review from David L.</b>")
	assert.Contains(t, body, "&quot;Terrible&quot;")
	assert.Contains(t, body, "<b>Credibility impact:</b> -15 pts")
	assert.Contains(t, body, "We apologise.")
	assert.Contains(t, body, `<a href="https://dash.example">`)

	a.Classification.CredibilityImpact = 5
	a.Classification.Urgency = event.UrgencyLow
	body = RenderAlert(ev.RawData, a, "")
	assert.Contains(t, body, "LOW:")
	assert.Contains(t, body, "+5 pts")
	assert.NotContains(t, body, "<a href")
}
