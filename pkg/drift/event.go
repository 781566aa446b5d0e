// Package drift defines the typed drift-event taxonomy and its
// serialization projection.
package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Type is the drift classification.
type Type string

const (
	TypeLayout       Type = "layout"
	TypeContent      Type = "content"
	TypeSequence     Type = "sequence"
	TypeManipulative Type = "manipulative"
)

// Severity is the event's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ChangeType further classifies what happened at Location.
type ChangeType string

const (
	ChangeAdded             ChangeType = "added"
	ChangeRemoved           ChangeType = "removed"
	ChangeModified          ChangeType = "modified"
	ChangeMissing           ChangeType = "missing"
	ChangeInvalidTransition ChangeType = "invalid_transition"
	ChangeForcedFlow        ChangeType = "forced_flow"
)

// Event is a single drift finding.
type Event struct {
	EventID    string         `json:"event_id"`
	DriftType  Type           `json:"drift_type"`
	Severity   Severity       `json:"severity"`
	Location   string         `json:"location,omitempty"`
	ChangeType ChangeType     `json:"change_type,omitempty"`
	Details    map[string]any `json:"details"`
	Timestamp  float64        `json:"timestamp"`
}

// ToDict projects the event to its dynamic wire representation: always
// {event_id, drift_type, severity, details, timestamp}, conditionally
// {location, change_type} when set.
func (e *Event) ToDict() map[string]any {
	out := map[string]any{
		"event_id":   e.EventID,
		"drift_type": string(e.DriftType),
		"severity":   string(e.Severity),
		"details":    e.Details,
		"timestamp":  e.Timestamp,
	}
	if e.Location != "" {
		out["location"] = e.Location
	}
	if e.ChangeType != "" {
		out["change_type"] = string(e.ChangeType)
	}
	return out
}

// newEvent fills EventID deterministically from drift_type || severity ||
// timestamp, then applies fn to set the type-specific fields.
func newEvent(t Type, sev Severity, timestamp float64, fn func(*Event)) *Event {
	e := &Event{
		DriftType: t,
		Severity:  sev,
		Details:   map[string]any{},
		Timestamp: timestamp,
	}
	if fn != nil {
		fn(e)
	}
	e.EventID = eventID(t, sev, timestamp)
	return e
}

func eventID(t Type, sev Severity, timestamp float64) string {
	raw := fmt.Sprintf("%s%s%s", t, sev, formatTimestamp(timestamp))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func formatTimestamp(ts float64) string {
	return fmt.Sprintf("%v", ts)
}

// NewLayoutDrift builds a layout-drift event: severity critical if
// similarity < 0.7, warning if < 0.9, else info.
func NewLayoutDrift(screenID string, similarity float64, diffSummary map[string]any, timestamp float64) *Event {
	sev := SeverityInfo
	switch {
	case similarity < 0.7:
		sev = SeverityCritical
	case similarity < 0.9:
		sev = SeverityWarning
	}
	return newEvent(TypeLayout, sev, timestamp, func(e *Event) {
		e.Location = fmt.Sprintf("screen:%s", screenID)
		e.Details["screen_id"] = screenID
		e.Details["similarity"] = similarity
		e.Details["diff_summary"] = diffSummary
	})
}

// NewContentDrift builds a content-drift event, always severity info.
func NewContentDrift(screenID string, changes map[string]any, timestamp float64) *Event {
	return newEvent(TypeContent, SeverityInfo, timestamp, func(e *Event) {
		e.Location = fmt.Sprintf("screen:%s", screenID)
		e.Details["screen_id"] = screenID
		e.Details["changes"] = changes
	})
}

// NewSequenceDrift builds a sequence-drift event for an invalid transition,
// always severity warning.
func NewSequenceDrift(invalidTransition string, expected []string, timestamp float64) *Event {
	return newEvent(TypeSequence, SeverityWarning, timestamp, func(e *Event) {
		e.ChangeType = ChangeInvalidTransition
		e.Details["transition"] = invalidTransition
		e.Details["expected"] = expected
	})
}

// NewManipulativeDrift builds a manipulative-pattern event, always severity
// critical.
func NewManipulativeDrift(patternType, description string, flow []string, timestamp float64) *Event {
	return newEvent(TypeManipulative, SeverityCritical, timestamp, func(e *Event) {
		e.ChangeType = ChangeForcedFlow
		e.Details["pattern_type"] = patternType
		e.Details["description"] = description
		e.Details["flow"] = flow
	})
}
