package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"moldubot/internal/model"
)

type DecompositionRepository struct {
	db *pgxpool.Pool
}

func NewDecompositionRepository(db *pgxpool.Pool) *DecompositionRepository {
	return &DecompositionRepository{db: db}
}

// Insert writes the audit row; redelivered events are ignored.
func (r *DecompositionRepository) Insert(ctx context.Context, rec *model.DecompositionRecord) error {
	query := `
        INSERT INTO intent_decompositions (request_id, trace_id, message, source, unusable_reason, decomposition, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (request_id) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query,
		rec.RequestID,
		rec.TraceID,
		rec.Message,
		rec.Source,
		rec.UnusableReason,
		rec.Decomposition,
		rec.CreatedAt,
	)
	return err
}

// CountBySource returns the number of recorded decompositions per source.
func (r *DecompositionRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT source, count(*) FROM intent_decompositions GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}
