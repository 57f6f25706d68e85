package alert

import (
	"time"

	"github.com/linnemanlabs/orrery/internal/transit"
)

// TypeTransit is the alert type of every alert this package creates.
const TypeTransit = "transit"

// Alert is a persisted, user-facing alert. It is immutable once stored;
// consumers decide when it has expired by comparing against ExpiresAt.
type Alert struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	AlertType string               `json:"alert_type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Severity  transit.Significance `json:"severity"`
	Metadata  Metadata             `json:"metadata"`
	ExpiresAt time.Time            `json:"expires_at"`
	CreatedAt time.Time            `json:"created_at"`
}

// Expired reports whether the alert's influence has passed at now.
func (a *Alert) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Metadata carries the originating transit and how the copy was produced.
type Metadata struct {
	Transit    transit.Transit `json:"transit"`
	Generation Provenance      `json:"generation"`
	Fallback   bool            `json:"fallback"`
}

// Provenance records how an alert message was produced.
type Provenance struct {
	Source         ContentKind `json:"source"`
	Model          string      `json:"model,omitempty"`
	PromptVariant  string      `json:"prompt_variant"`
	Tone           Tone        `json:"tone"`
	TokensTotal    int         `json:"tokens_total,omitempty"`
	CostTotal      float64     `json:"cost_total,omitempty"`
	LatencySeconds float64     `json:"latency_seconds,omitempty"`
	FallbackReason string      `json:"fallback_reason,omitempty"`
}

// Profile is optional personalization context for a user.
type Profile struct {
	FullName      string `json:"full_name,omitempty"`
	BirthLocation string `json:"birth_location,omitempty"`
}

// Stats aggregates a user's stored transit alerts.
type Stats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
	Recent     int            `json:"recent"`
}
