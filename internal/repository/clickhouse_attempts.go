package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/trafficgate/postback-gateway/internal/model"
)

// CHAttemptsRepository lists delivery attempts from ClickHouse (the
// CDC-fed read side used by the operator log view). Synthetic attempts
// stay visible here; they are only excluded from success statistics.
type CHAttemptsRepository interface {
	ListByProfile(ctx context.Context, f AttemptsFilter) ([]model.DeliveryAttempt, error)
}

// AttemptsFilter narrows the log view. Zero values mean "no filter".
type AttemptsFilter struct {
	ProfileID int64
	Outcome   model.Outcome
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

type chAttemptsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHAttemptsRepository(ch *sqlx.DB) CHAttemptsRepository {
	return &chAttemptsRepository{ch: ch}
}

func (r *chAttemptsRepository) ListByProfile(ctx context.Context, f AttemptsFilter) ([]model.DeliveryAttempt, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT id, delivery_id, profile_id, clickid, event_type,
		       attempt_number, max_attempts, request_method, request_url, request_body,
		       response_status_code, response_excerpt, error_message,
		       duration_ms, synthetic, outcome, created_at
		FROM pbgw.delivery_attempts
		WHERE profile_id = ?
	`
	args := []any{f.ProfileID}

	if f.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, f.Outcome.String())
	}
	if !f.From.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		q += " AND created_at < ?"
		args = append(args, f.To)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.DeliveryAttempt
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
