package types

import (
	"encoding/json"
	"fmt"
)

// SignalBatchComplete is the only webhook signal carrying judgment results.
// Every other signal is acknowledged and ignored.
const SignalBatchComplete = "unit_complete"

// Answer is one worker's binary response for one category.
type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

// Judgment is one worker's set of answers for one record, possibly marked
// tainted by the provider's quality controls. Tainted judgments are excluded
// from scoring.
type Judgment struct {
	Tainted bool                `json:"tainted"`
	Answers map[Category]Answer `json:"data"`
}

// Notification is the inbound webhook payload delivered by the crowdsourcing
// provider when a unit of work finishes. Deliveries may arrive more than once
// and out of order; processing must be idempotent.
type Notification struct {
	Signal  string           `json:"signal"`
	JobID   string           `json:"job_id"`
	Data    NotificationData `json:"data"`
	Results BatchResults     `json:"results"`
}

// NotificationData carries the identifiers the provider echoes back from the
// unit we uploaded.
type NotificationData struct {
	RecordID string `json:"image_id"`
}

// BatchResults holds the raw judgment batch for one (record, category) pair.
type BatchResults struct {
	Judgments []Judgment `json:"judgments"`
}

// ParseNotification decodes a JSON-encoded notification. The provider
// sometimes delivers the payload as a JSON string inside a form field, so
// callers hand the raw bytes here rather than decoding inline.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("malformed notification payload: %w", err)
	}
	return &n, nil
}

// UnmarshalJSON accepts job_id as either a JSON number or a string; the
// provider is not consistent about which it sends.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias struct {
		Signal  string           `json:"signal"`
		JobID   json.RawMessage  `json:"job_id"`
		Data    NotificationData `json:"data"`
		Results BatchResults     `json:"results"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	n.Signal = a.Signal
	n.Data = a.Data
	n.Results = a.Results
	n.JobID = ""
	if len(a.JobID) > 0 {
		var s string
		if err := json.Unmarshal(a.JobID, &s); err == nil {
			n.JobID = s
		} else {
			var num json.Number
			if err := json.Unmarshal(a.JobID, &num); err != nil {
				return fmt.Errorf("job_id is neither string nor number: %s", a.JobID)
			}
			n.JobID = num.String()
		}
	}
	return nil
}
