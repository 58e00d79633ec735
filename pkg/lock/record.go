package lock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusRunning is the only status a stored record ever has.
const StatusRunning = "Running"

// StartTimeLayout formats the human-readable start time.
const StartTimeLayout = "15:04:05"

// Record is the persisted session marker. Its presence is the lock.
type Record struct {
	// Holder identifies who runs the session.
	Holder string `json:"user"`

	// StartTime is the wall-clock start time for display (HH:MM:SS).
	StartTime string `json:"start_time"`

	// Total is the number of items the session checks.
	Total int `json:"total"`

	Status string `json:"status"`

	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NewRecord builds a Running record for holder with a fresh session ID.
func NewRecord(holder string, total int, now time.Time) Record {
	return Record{
		Holder:    holder,
		StartTime: now.Format(StartTimeLayout),
		Total:     total,
		Status:    StatusRunning,
		SessionID: uuid.NewString(),
		StartedAt: now,
	}
}

// Age returns how long the session has been running.
func (r Record) Age() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return time.Since(r.StartedAt)
}

// String renders the record for display.
func (r Record) String() string {
	return fmt.Sprintf("in use by %s since %s (%d items)", r.Holder, r.StartTime, r.Total)
}

func (r Record) validate() error {
	if r.Holder == "" {
		return fmt.Errorf("%w: missing holder", ErrCorruptRecord)
	}
	if r.Status != StatusRunning {
		return fmt.Errorf("%w: unexpected status %q", ErrCorruptRecord, r.Status)
	}
	return nil
}

func encodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
