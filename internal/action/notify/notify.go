// Package notify sends operator alerts as Intercom conversations.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const (
	DefaultBaseURL        = "https://api.intercom.io"
	DefaultRecipientEmail = "demo@boxfordpartners.com"
	apiVersion            = "2.11"
)

var conflictID = regexp.MustCompile(`id=([a-f0-9]+)`)

// Config configures the Intercom client. An empty AccessToken disables the sink.
type Config struct {
	BaseURL        string
	AccessToken    string
	RecipientEmail string
	DashboardURL   string
	Timeout        time.Duration
}

// Sink delivers one alert per analysed event. The recipient contact id is
// resolved on first send and cached until Reset.
type Sink struct {
	cfg    Config
	client *http.Client

	mu        sync.Mutex
	contactID string
}

// New creates a Sink.
func New(cfg Config) *Sink {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RecipientEmail == "" {
		cfg.RecipientEmail = DefaultRecipientEmail
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sink{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (s *Sink) Type() string { return action.TypeNotification }

func (s *Sink) Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) (event.ActionDetails, error) {
	if s.cfg.AccessToken == "" {
		return event.ActionDetails{Status: event.ActionSkipped}, nil
	}
	contactID, err := s.ensureContact(ctx)
	if err != nil {
		return event.ActionDetails{}, err
	}

	payload := map[string]any{
		"from": map[string]string{"type": "user", "id": contactID},
		"body": RenderAlert(ev.RawData, a, s.cfg.DashboardURL),
	}
	var convo struct {
		ID any `json:"conversation_id"`
	}
	status, body, err := s.post(ctx, "/conversations", payload)
	if err != nil {
		return event.ActionDetails{}, err
	}
	if status < 200 || status > 299 {
		return event.ActionDetails{}, fmt.Errorf("Intercom conversation failed (%d): %s", status, body)
	}
	details := event.ActionDetails{Status: event.ActionSent}
	if json.Unmarshal(body, &convo) == nil && convo.ID != nil {
		details.ID = fmt.Sprint(convo.ID)
	}
	return details, nil
}

// Reset drops the cached contact id.
func (s *Sink) Reset() {
	s.mu.Lock()
	s.contactID = ""
	s.mu.Unlock()
}

// ensureContact finds the recipient by email, creating it when missing.
// A 409 on create still yields the existing id from the error body.
func (s *Sink) ensureContact(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contactID != "" {
		return s.contactID, nil
	}

	search := map[string]any{
		"query": map[string]string{"field": "email", "operator": "=", "value": s.cfg.RecipientEmail},
	}
	status, body, err := s.post(ctx, "/contacts/search", search)
	if err == nil && status >= 200 && status <= 299 {
		var found struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if json.Unmarshal(body, &found) == nil && len(found.Data) > 0 && found.Data[0].ID != "" {
			s.contactID = found.Data[0].ID
			return s.contactID, nil
		}
	}

	create := map[string]string{"role": "user", "email": s.cfg.RecipientEmail, "name": "Demo Operator"}
	status, body, err = s.post(ctx, "/contacts", create)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		if status == http.StatusConflict {
			if m := conflictID.FindSubmatch(body); m != nil {
				s.contactID = string(m[1])
				return s.contactID, nil
			}
		}
		return "", fmt.Errorf("Intercom contact creation failed (%d): %s", status, body)
	}

	var contact struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &contact); err != nil || contact.ID == "" {
		return "", fmt.Errorf("Intercom contact creation returned no id")
	}
	s.contactID = contact.ID
	return s.contactID, nil
}

func (s *Sink) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Intercom-Version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("Intercom %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, bytes.TrimSpace(body), nil
}

// RenderAlert builds the HTML conversation body for one review.
func RenderAlert(review event.Finding, a event.Analysis, dashboardURL string) string {
	c := a.Classification
	impact := fmt.Sprintf("%d", c.CredibilityImpact)
	if c.CredibilityImpact > 0 {
		impact = "+" + impact
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s: %d-star review from %s</b><br><br>", strings.ToUpper(string(c.Urgency)), review.Rating, html.EscapeString(review.Author))
	fmt.Fprintf(&b, "&quot;%s&quot;<br><br>", html.EscapeString(review.Text))
	fmt.Fprintf(&b, "<b>Credibility impact:</b> %s pts<br><br>", impact)
	fmt.Fprintf(&b, "<b>Drafted response:</b><br>%s", html.EscapeString(a.DraftedResponse))
	if dashboardURL != "" {
		fmt.Fprintf(&b, "<br><br><a href=\"%s\">Open dashboard to accept or reject →</a>", html.EscapeString(dashboardURL))
	}
	return b.String()
}
