package relational

import (
	"encoding/json"
	"time"
)

// SnapshotRow is the last persisted reading of one family.
type SnapshotRow struct {
	Family    string          `json:"family"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EventRow is one fired event in the history table.
type EventRow struct {
	EventID  string          `json:"event_id"`
	Name     string          `json:"name"`
	Identity string          `json:"identity"`
	Severity string          `json:"severity"`
	Value    float64         `json:"value"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	FiredAt  time.Time       `json:"fired_at"`
}

// EventCount aggregates the history by event name and severity.
type EventCount struct {
	Name     string    `json:"name"`
	Severity string    `json:"severity"`
	Count    int64     `json:"count"`
	Last     time.Time `json:"last"`
}
