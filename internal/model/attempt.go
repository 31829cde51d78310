package model

import "time"

type Outcome string

const (
	// OutcomeSent: 2xx response, delivery terminal success.
	OutcomeSent Outcome = "sent"
	// OutcomeFailed: build-time configuration error, no HTTP call issued.
	OutcomeFailed Outcome = "failed"
	// OutcomeRetrying: attempt failed, a later attempt is scheduled.
	OutcomeRetrying Outcome = "retrying"
	// OutcomeAbandoned: attempt failed and the retry budget is exhausted,
	// or the profile was disabled between attempts.
	OutcomeAbandoned Outcome = "abandoned"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSent, OutcomeFailed, OutcomeRetrying, OutcomeAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the logical delivery is finished after an
// attempt with this outcome.
func (o Outcome) Terminal() bool {
	return o == OutcomeSent || o == OutcomeFailed || o == OutcomeAbandoned
}

// DeliveryAttempt is one row of the append-only ledger: a single HTTP call
// (or a build failure recorded without one). Rows are never updated after
// insert; a retry creates a new row with attempt_number+1 under the same
// delivery_id.
type DeliveryAttempt struct {
	ID                 string    `db:"id"`
	DeliveryID         string    `db:"delivery_id"`
	ProfileID          int64     `db:"profile_id"`
	ClickID            string    `db:"clickid"`
	EventType          string    `db:"event_type"`
	AttemptNumber      int       `db:"attempt_number"`
	MaxAttempts        int       `db:"max_attempts"`
	RequestMethod      string    `db:"request_method"`
	RequestURL         string    `db:"request_url"`  // secrets redacted
	RequestBody        string    `db:"request_body"` // secrets redacted
	ResponseStatusCode *int      `db:"response_status_code"` // nil = network-level failure
	ResponseExcerpt    string    `db:"response_excerpt"`
	ErrorMessage       *string   `db:"error_message"`
	DurationMs         int64     `db:"duration_ms"`
	Synthetic          bool      `db:"synthetic"`
	Outcome            Outcome   `db:"outcome"`
	CreatedAt          time.Time `db:"created_at"`
}

// ProfileStats are derived reads over the ledger, never stored counters.
// Synthetic attempts are excluded.
type ProfileStats struct {
	ProfileID         int64      `json:"profile_id"`
	TotalSent         int64      `json:"total_sent"`
	TotalAbandoned    int64      `json:"total_abandoned"`
	SuccessRate       float64    `json:"success_rate"` // sent / (sent + abandoned)
	AvgResponseTimeMs float64    `json:"avg_response_time_ms"`
	LastDeliveryAt    *time.Time `json:"last_delivery_at,omitempty"`
}
