package history

import "time"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Conversion is one finished conversion. Hash is informational only.
type Conversion struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Filename      string    `json:"filename"`
	Hash          string    `json:"hash,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
