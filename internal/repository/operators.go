package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/trafficgate/postback-gateway/internal/model"
)

type OperatorsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error)
}

type OperatorsRepositoryImpl struct {
	db *sqlx.DB
}

func NewOperatorsRepository(db *sqlx.DB) *OperatorsRepositoryImpl {
	return &OperatorsRepositoryImpl{db: db}
}

var _ OperatorsRepository = (*OperatorsRepositoryImpl)(nil)

func (r *OperatorsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Operator, error) {
	var o model.Operator
	err := r.db.GetContext(ctx, &o, `
		SELECT id, name, api_key, status, rate_limit_rps, created_at, updated_at
		  FROM operators
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
