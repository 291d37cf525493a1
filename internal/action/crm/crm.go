// Package crm posts analysed reviews into the CRM inbox.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const (
	DefaultBaseURL = "https://app.boxfordpartners.com"
	previewLimit   = 200
)

// Config configures the CRM inbox endpoint. An empty WorkspaceID disables the sink.
type Config struct {
	BaseURL     string
	WorkspaceID string
	Timeout     time.Duration
}

// InboxItem is the body POSTed to {base}/api/inbox.
type InboxItem struct {
	WorkspaceID       string `json:"workspace_id"`
	From              string `json:"from"`
	Subject           string `json:"subject"`
	Preview           string `json:"preview"`
	Classification    string `json:"classification"`
	RecommendedAction string `json:"recommended_action"`
}

// Sink creates one CRM inbox item per analysed event.
type Sink struct {
	baseURL     string
	workspaceID string
	client      *http.Client
}

// New creates a Sink.
func New(cfg Config) *Sink {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Sink{
		baseURL:     base,
		workspaceID: cfg.WorkspaceID,
		client:      &http.Client{Timeout: timeout},
	}
}

func (s *Sink) Type() string { return action.TypeCRMInbox }

func (s *Sink) Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) (event.ActionDetails, error) {
	if s.workspaceID == "" {
		return event.ActionDetails{Status: event.ActionSkipped}, nil
	}
	id, err := s.post(ctx, BuildInboxItem(s.workspaceID, ev.RawData, a))
	if err != nil {
		return event.ActionDetails{}, err
	}
	return event.ActionDetails{Status: event.ActionCreated, ID: id}, nil
}

// BuildInboxItem derives the inbox summary for one review.
func BuildInboxItem(workspaceID string, review event.Finding, a event.Analysis) InboxItem {
	tag := "opportunity"
	if a.Classification.Sentiment == event.SentimentNegative {
		tag = "risk"
	}
	return InboxItem{
		WorkspaceID:       workspaceID,
		From:              review.Author,
		Subject:           fmt.Sprintf("%s review detected (%d star)", a.Classification.Sentiment, review.Rating),
		Preview:           truncate(review.Text, previewLimit),
		Classification:    tag,
		RecommendedAction: a.DraftedResponse,
	}
}

func (s *Sink) post(ctx context.Context, item InboxItem) (string, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inbox item: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/inbox", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("CRM inbox POST: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("CRM inbox POST failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var created struct {
		ID any `json:"id"`
	}
	if len(respBody) == 0 || json.Unmarshal(respBody, &created) != nil || created.ID == nil {
		return "", nil
	}
	return fmt.Sprint(created.ID), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
