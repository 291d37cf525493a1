package event

import "time"

// EventTypeReviewDetected is the only event type the pipeline produces today.
const EventTypeReviewDetected = "review_detected"

// Severity is assigned from the star rating when an event is created.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForRating maps a 1–5 star rating onto a severity.
func SeverityForRating(rating int) Severity {
	switch {
	case rating <= 2:
		return SeverityCritical
	case rating <= 3:
		return SeverityHigh
	case rating <= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Status is the lifecycle state of a CredibilityEvent.
//
//	detected → analyzing → acting → complete
//	               ↘          ↘
//	                 error ←───┘
type Status string

const (
	StatusDetected  Status = "detected"
	StatusAnalyzing Status = "analyzing"
	StatusActing    Status = "acting"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDetected:
		return to == StatusAnalyzing
	case StatusAnalyzing:
		return to == StatusActing || to == StatusError
	case StatusActing:
		return to == StatusComplete || to == StatusError
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Feedback is the operator's verdict on a drafted response.
type Feedback string

const (
	FeedbackAccepted Feedback = "accepted"
	FeedbackRejected Feedback = "rejected"
)

// Valid reports whether f is one of the known verdicts.
func (f Feedback) Valid() bool {
	return f == FeedbackAccepted || f == FeedbackRejected
}

// Finding is one externally sourced review before it becomes a stored event.
type Finding struct {
	Author      string `json:"author"`
	Rating      int    `json:"rating"` // 1–5
	Text        string `json:"text"`
	PublishedAt string `json:"publishedAt"`
	Source      string `json:"source"`
}

// Classification is the structured verdict produced by the classifier.
type Classification struct {
	Sentiment         Sentiment `json:"sentiment"`
	Themes            []string  `json:"themes"`
	CredibilityImpact int       `json:"credibilityImpact"`
	Urgency           Urgency   `json:"urgency"`
}

// Analysis is the classifier's full output for one finding.
type Analysis struct {
	Classification  Classification `json:"classification"`
	DraftedResponse string         `json:"draftedResponse"`
	Reasoning       string         `json:"reasoning"`
}

// Action statuses recorded in ActionDetails.Status.
const (
	ActionCreated   = "created"
	ActionSent      = "sent"
	ActionPublished = "published"
	ActionSkipped   = "skipped"
	ActionFailed    = "failed"
)

// ActionDetails carries the outcome of one downstream side effect.
type ActionDetails struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ActionRecord is one entry in CredibilityEvent.ActionsTaken.
type ActionRecord struct {
	Type      string        `json:"type"`
	Details   ActionDetails `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
}

// Succeeded reports whether the action did not fail (skips count as success).
func (r ActionRecord) Succeeded() bool {
	return r.Details.Status != ActionFailed
}

// CredibilityEvent is one detected finding and its lifecycle.
// Identity and RawData never change after creation.
type CredibilityEvent struct {
	ID              string          `json:"id"`
	BusinessID      string          `json:"businessId"`
	BusinessName    string          `json:"businessName"`
	EventType       string          `json:"eventType"`
	Source          string          `json:"source"`
	Severity        Severity        `json:"severity"`
	RawData         Finding         `json:"rawData"`
	DetectedAt      time.Time       `json:"detectedAt"`
	Classification  *Classification `json:"classification,omitempty"`
	ActionsTaken    []ActionRecord  `json:"actionsTaken"`
	ResponseDrafted *string         `json:"responseDrafted,omitempty"`
	HumanFeedback   *Feedback       `json:"humanFeedback,omitempty"`
	Status          Status          `json:"status"`
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (e CredibilityEvent) Clone() CredibilityEvent {
	out := e
	if e.Classification != nil {
		c := *e.Classification
		c.Themes = append([]string(nil), e.Classification.Themes...)
		out.Classification = &c
	}
	out.ActionsTaken = append([]ActionRecord{}, e.ActionsTaken...)
	if e.ResponseDrafted != nil {
		s := *e.ResponseDrafted
		out.ResponseDrafted = &s
	}
	if e.HumanFeedback != nil {
		f := *e.HumanFeedback
		out.HumanFeedback = &f
	}
	return out
}

// LogType classifies a LogEntry for display.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
)

// LogEntry is one human-readable line in the agent log.
type LogEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      LogType   `json:"type"`
}

// FeedbackEntry records an operator verdict on a drafted response.
type FeedbackEntry struct {
	EventID  string   `json:"eventId"`
	Feedback Feedback `json:"feedback"`
	Original string   `json:"original"`
	Modified string   `json:"modified,omitempty"`
}

// ScorePoint is one snapshot in the score history.
type ScorePoint struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreState is the current credibility score and its history.
type ScoreState struct {
	Current int          `json:"current"`
	History []ScorePoint `json:"history"`
}
