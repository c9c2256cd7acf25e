package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/types"
)

// TransactionRepository persists the journal of transaction state machine runs.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction journal repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{pool: db.Pool()}
}

// Create inserts a journal entry for a freshly started state machine run.
func (r *TransactionRepository) Create(ctx context.Context, record *models.TransactionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transaction_journal (
			id, action, identity, target, tx_hash, state, failure_reason, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		string(record.Action),
		record.Identity,
		record.Target,
		record.TxHash,
		string(record.State),
		record.FailureReason,
		record.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction record: %w", err)
	}

	return nil
}

// UpdateState advances a journal entry's state. Terminal states also record
// the completion time and, for failures, the reason.
func (r *TransactionRepository) UpdateState(ctx context.Context, id string, state types.TxState, txHash, failureReason string) error {
	query := `
		UPDATE transaction_journal
		SET state = $2,
		    tx_hash = CASE WHEN $3 <> '' THEN $3 ELSE tx_hash END,
		    failure_reason = $4,
		    completed_at = CASE WHEN $5 THEN NOW() ELSE completed_at END
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, string(state), txHash, failureReason, state.Terminal())
	if err != nil {
		return fmt.Errorf("failed to update transaction record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &types.ServiceError{Code: types.CodeNotFound, Message: fmt.Sprintf("transaction record not found: %s", id)}
	}

	return nil
}

// ListByIdentity returns the identity's most recent journal entries.
func (r *TransactionRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]*models.TransactionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, action, identity, target, tx_hash, state, failure_reason, submitted_at, COALESCE(completed_at, 'epoch'::timestamptz)
		FROM transaction_journal
		WHERE identity = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction records: %w", err)
	}
	defer rows.Close()

	var records []*models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		var action, state string
		if err := rows.Scan(&rec.ID, &action, &rec.Identity, &rec.Target, &rec.TxHash, &state, &rec.FailureReason, &rec.SubmittedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction record: %w", err)
		}
		rec.Action = types.ActionKind(action)
		rec.State = types.TxState(state)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
