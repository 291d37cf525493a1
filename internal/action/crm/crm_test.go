package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

func analysis(s event.Sentiment) event.Analysis {
	return event.Analysis{
		Classification:  event.Classification{Sentiment: s, CredibilityImpact: -8, Urgency: event.UrgencyHigh},
		DraftedResponse: "We are sorry.",
	}
}

func TestSink_SkipsWithoutWorkspace(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	d, err := New(Config{BaseURL: srv.URL}).Execute(context.Background(), event.CredibilityEvent{}, analysis(event.SentimentNegative))
	require.NoError(t, err)
	assert.Equal(t, event.ActionSkipped, d.Status)
	assert.False(t, called)
}

func TestSink_PostsInboxItem(t *testing.T) {
	var got InboxItem
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/inbox", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 4021}`))
	}))
	defer srv.Close()

	ev := event.CredibilityEvent{RawData: event.Finding{Author: "Jane D.", Rating: 2, Text: strings.Repeat("x", 250)}}
	d, err := New(Config{BaseURL: srv.URL + "/", WorkspaceID: "ws-1"}).Execute(context.Background(), ev, analysis(event.SentimentNegative))
	require.NoError(t, err)

	assert.Equal(t, event.ActionCreated, d.Status)
	assert.Equal(t, "4021", d.ID)
	assert.Equal(t, "ws-1", got.WorkspaceID)
	assert.Equal(t, "Jane D.", got.From)
	assert.Equal(t, "negative review detected (2 star)", got.Subject)
	assert.Len(t, got.Preview, 200)
	assert.Equal(t, "risk", got.Classification)
	assert.Equal(t, "We are sorry.", got.RecommendedAction)
}

func TestSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad workspace", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL, WorkspaceID: "ws-1"}).Execute(context.Background(), event.CredibilityEvent{}, analysis(event.SentimentPositive))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(400)")
	assert.Contains(t, err.Error(), "bad workspace")
}

func TestBuildInboxItem_ClassificationTag(t *testing.T) {
	cases := []struct {
		sentiment event.Sentiment
		want      string
	}{
		{event.SentimentNegative, "risk"},
		{event.SentimentNeutral, "opportunity"},
		{event.SentimentPositive, "opportunity"},
	}
	for _, tc := range cases {
		t.Run(string(tc.sentiment), func(t *testing.T) {
			item := BuildInboxItem("ws", event.Finding{Rating: 4}, analysis(tc.sentiment))
			assert.Equal(t, tc.want, item.Classification)
		})
	}
}
