package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/trafficgate/postback-gateway/internal/model"
)

// ProfilesRepository reads postback profiles. The engine never writes
// them; edits happen through the operator CRUD surface and become visible
// here on the next read.
type ProfilesRepository interface {
	GetByID(ctx context.Context, id int64) (*model.PostbackProfile, error)
	ListEnabled(ctx context.Context) ([]model.PostbackProfile, error)
}

type ProfilesRepositoryImpl struct {
	db *sqlx.DB
}

func NewProfilesRepository(db *sqlx.DB) *ProfilesRepositoryImpl {
	return &ProfilesRepositoryImpl{db: db}
}

var _ ProfilesRepository = (*ProfilesRepositoryImpl)(nil)

const profileColumns = `
	id, name, tracker_type, scope_type, scope_id, priority, enabled,
	url, method, id_param,
	auth_query_key, auth_query_val, auth_header_name, auth_header_val,
	status_map, params, url_encode_values,
	hmac_enabled, hmac_secret, hmac_payload, hmac_sig_param,
	max_attempts, timeout_ms, backoff_base_sec,
	revenue_gt_zero, country_allow, country_deny, exclude_bots,
	created_at, updated_at
`

// profileRow is the flat DB shape; JSON columns are unpacked into the
// model's maps and lists.
type profileRow struct {
	ID              int64           `db:"id"`
	Name            string          `db:"name"`
	TrackerType     string          `db:"tracker_type"`
	ScopeType       string          `db:"scope_type"`
	ScopeID         string          `db:"scope_id"`
	Priority        int             `db:"priority"`
	Enabled         bool            `db:"enabled"`
	URL             string          `db:"url"`
	Method          string          `db:"method"`
	IDParam         string          `db:"id_param"`
	AuthQueryKey    string          `db:"auth_query_key"`
	AuthQueryVal    string          `db:"auth_query_val"`
	AuthHeaderName  string          `db:"auth_header_name"`
	AuthHeaderVal   string          `db:"auth_header_val"`
	StatusMap       json.RawMessage `db:"status_map"`
	Params          json.RawMessage `db:"params"`
	URLEncodeValues bool            `db:"url_encode_values"`
	HMACEnabled     bool            `db:"hmac_enabled"`
	HMACSecret      string          `db:"hmac_secret"`
	HMACPayload     sql.NullString  `db:"hmac_payload"`
	HMACSigParam    string          `db:"hmac_sig_param"`
	MaxAttempts     int             `db:"max_attempts"`
	TimeoutMs       int             `db:"timeout_ms"`
	BackoffBaseSec  int             `db:"backoff_base_sec"`
	RevenueGtZero   bool            `db:"revenue_gt_zero"`
	CountryAllow    json.RawMessage `db:"country_allow"`
	CountryDeny     json.RawMessage `db:"country_deny"`
	ExcludeBots     bool            `db:"exclude_bots"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (row profileRow) toModel() (model.PostbackProfile, error) {
	p := model.PostbackProfile{
		ID:          row.ID,
		Name:        row.Name,
		TrackerType: row.TrackerType,
		Scope: model.Scope{
			Type: model.ScopeType(row.ScopeType),
			ID:   row.ScopeID,
		},
		Priority: row.Priority,
		Enabled:  row.Enabled,
		Endpoint: model.Endpoint{
			URL:    row.URL,
			Method: row.Method,
		},
		IDParam: row.IDParam,
		Auth: model.Auth{
			QueryKey:   row.AuthQueryKey,
			QueryVal:   row.AuthQueryVal,
			HeaderName: row.AuthHeaderName,
			HeaderVal:  row.AuthHeaderVal,
		},
		URLEncodeValues: row.URLEncodeValues,
		HMAC: model.HMAC{
			Enabled:         row.HMACEnabled,
			Secret:          row.HMACSecret,
			PayloadTemplate: row.HMACPayload.String,
			SignatureParam:  row.HMACSigParam,
		},
		Retry: model.RetryPolicy{
			MaxAttempts:    row.MaxAttempts,
			TimeoutMs:      row.TimeoutMs,
			BackoffBaseSec: row.BackoffBaseSec,
		},
		Filters: model.Filters{
			RevenueGreaterThanZero: row.RevenueGtZero,
			ExcludeBots:            row.ExcludeBots,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if err := unpackJSON(row.StatusMap, &p.StatusMap); err != nil {
		return p, fmt.Errorf("profile %d status_map: %w", row.ID, err)
	}
	if err := unpackJSON(row.Params, &p.Params); err != nil {
		return p, fmt.Errorf("profile %d params: %w", row.ID, err)
	}
	if err := unpackJSON(row.CountryAllow, &p.Filters.CountryAllow); err != nil {
		return p, fmt.Errorf("profile %d country_allow: %w", row.ID, err)
	}
	if err := unpackJSON(row.CountryDeny, &p.Filters.CountryDeny); err != nil {
		return p, fmt.Errorf("profile %d country_deny: %w", row.ID, err)
	}
	return p, nil
}

func unpackJSON(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (r *ProfilesRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.PostbackProfile, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+profileColumns+` FROM postback_profiles WHERE id = ? LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfilesRepositoryImpl) ListEnabled(ctx context.Context) ([]model.PostbackProfile, error) {
	var rows []profileRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+profileColumns+` FROM postback_profiles WHERE enabled = 1 ORDER BY priority, created_at`)
	if err != nil {
		return nil, err
	}

	out := make([]model.PostbackProfile, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
