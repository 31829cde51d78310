package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/trafficgate/postback-gateway/internal/model"
)

// AttemptsRepository is the append-only delivery ledger. Rows are inserted
// once and never updated; every statistic is a derived read, so aggregates
// can never drift from the attempt history.
type AttemptsRepository interface {
	Insert(ctx context.Context, a model.DeliveryAttempt) error
	Stats(ctx context.Context, profileID int64) (model.ProfileStats, error)
}

type AttemptsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAttemptsRepository(db *sqlx.DB) *AttemptsRepositoryImpl {
	return &AttemptsRepositoryImpl{db: db}
}

var _ AttemptsRepository = (*AttemptsRepositoryImpl)(nil)

// Insert appends one attempt row. The ULID primary key makes re-delivery
// of the same attempt idempotent.
func (r *AttemptsRepositoryImpl) Insert(ctx context.Context, a model.DeliveryAttempt) error {
	const q = `
		INSERT INTO delivery_attempts
		    (id, delivery_id, profile_id, clickid, event_type,
		     attempt_number, max_attempts, request_method, request_url, request_body,
		     response_status_code, response_excerpt, error_message,
		     duration_ms, synthetic, outcome, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(3))
		ON DUPLICATE KEY UPDATE id = id
	`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.DeliveryID, a.ProfileID, a.ClickID, a.EventType,
		a.AttemptNumber, a.MaxAttempts, a.RequestMethod, a.RequestURL, a.RequestBody,
		a.ResponseStatusCode, a.ResponseExcerpt, a.ErrorMessage,
		a.DurationMs, a.Synthetic, a.Outcome.String(),
	)
	return err
}

// Stats derives per-profile aggregates over non-synthetic attempts.
// Success rate is sent / (sent + abandoned); average latency covers only
// attempts that got an HTTP response.
func (r *AttemptsRepositoryImpl) Stats(ctx context.Context, profileID int64) (model.ProfileStats, error) {
	const q = `
		SELECT
		    COALESCE(SUM(outcome = 'sent'), 0)                                       AS sent,
		    COALESCE(SUM(outcome = 'abandoned'), 0)                                  AS abandoned,
		    AVG(CASE WHEN response_status_code IS NOT NULL THEN duration_ms END)     AS avg_ms,
		    MAX(created_at)                                                          AS last_at
		FROM delivery_attempts
		WHERE profile_id = ? AND synthetic = 0
	`
	var row struct {
		Sent      int64           `db:"sent"`
		Abandoned int64           `db:"abandoned"`
		AvgMs     sql.NullFloat64 `db:"avg_ms"`
		LastAt    sql.NullTime    `db:"last_at"`
	}
	if err := r.db.GetContext(ctx, &row, q, profileID); err != nil {
		return model.ProfileStats{}, err
	}

	stats := model.ProfileStats{
		ProfileID:      profileID,
		TotalSent:      row.Sent,
		TotalAbandoned: row.Abandoned,
	}
	if total := row.Sent + row.Abandoned; total > 0 {
		stats.SuccessRate = float64(row.Sent) / float64(total)
	}
	if row.AvgMs.Valid {
		stats.AvgResponseTimeMs = row.AvgMs.Float64
	}
	if row.LastAt.Valid {
		t := row.LastAt.Time
		stats.LastDeliveryAt = &t
	}
	return stats, nil
}
