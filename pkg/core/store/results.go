package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finsight/pkg/core/score"
)

// ResultRepo persists score results keyed by dataset fingerprint. It
// satisfies the cache.ResultCache contract, so deployments without Redis
// still get read-through memoization from Postgres.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo wraps an existing pool.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Get returns the stored result for an unchanged dataset, if any.
func (r *ResultRepo) Get(ctx context.Context, fingerprint string) (*score.Result, bool, error) {
	query := `
		SELECT data
		FROM score_results
		WHERE dataset_fingerprint = $1
		LIMIT 1
	`
	var data []byte
	err := r.pool.QueryRow(ctx, query, fingerprint).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load score result: %w", err)
	}

	var res score.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("decode score result: %w", err)
	}
	return &res, true, nil
}

// Set upserts the result under its fingerprint. A rerun of the same dataset
// refreshes the row instead of duplicating it.
func (r *ResultRepo) Set(ctx context.Context, fingerprint string, result *score.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode score result: %w", err)
	}

	query := `
		INSERT INTO score_results (id, dataset_fingerprint, overall, label, confidence, data, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dataset_fingerprint)
		DO UPDATE SET
			overall = EXCLUDED.overall,
			label = EXCLUDED.label,
			confidence = EXCLUDED.confidence,
			data = EXCLUDED.data,
			computed_at = EXCLUDED.computed_at
	`
	_, err = r.pool.Exec(ctx, query,
		uuid.NewString(), fingerprint,
		result.Overall, result.Label, string(result.Confidence),
		data, result.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("save score result: %w", err)
	}
	return nil
}
