package model

import "time"

// Operator is a dashboard user of the delivery log / stats / test API.
type Operator struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	APIKey       string    `db:"api_key"`
	Status       string    `db:"status"` // active | suspended
	RateLimitRPS *int      `db:"rate_limit_rps"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
