package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estate-sync/internal/models"
)

// SnapshotRepository handles portfolio snapshot storage operations
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{pool: db.Pool()}
}

// Create stores a portfolio snapshot recorded after a successful sync.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.RecordedAt.IsZero() {
		snapshot.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO portfolio_snapshots (
			id, identity, property_count, total_tokens, total_value, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.Identity,
		snapshot.Count,
		snapshot.TotalTokens,
		snapshot.TotalValue,
		snapshot.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// GetByIdentityAndRange retrieves snapshots for an identity within a time
// range, in chronological order.
func (r *SnapshotRepository) GetByIdentityAndRange(ctx context.Context, identity string, from, to time.Time) ([]*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, identity, property_count, total_tokens, total_value, recorded_at
		FROM portfolio_snapshots
		WHERE identity = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at ASC
	`

	rows, err := r.pool.Query(ctx, query, identity, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.PortfolioSnapshot
	for rows.Next() {
		var s models.PortfolioSnapshot
		if err := rows.Scan(&s.ID, &s.Identity, &s.Count, &s.TotalTokens, &s.TotalValue, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}

	return snapshots, rows.Err()
}
