package models

import (
	"time"

	"github.com/estate-sync/internal/types"
)

// TransactionRecord is the journal entry for one run of the transaction
// state machine. Terminal entries are never updated again.
type TransactionRecord struct {
	ID       string           `json:"id" db:"id"`
	Action   types.ActionKind `json:"action" db:"action"`
	Identity string           `json:"identity" db:"identity"`
	// Target identifies the logical target of the action: "property:<id>"
	// or "order:<id>"
	Target string        `json:"target" db:"target"`
	TxHash string        `json:"txHash,omitempty" db:"tx_hash"`
	State  types.TxState `json:"state" db:"state"`
	// FailureReason carries the most specific reason available when State is failed
	FailureReason string    `json:"failureReason,omitempty" db:"failure_reason"`
	SubmittedAt   time.Time `json:"submittedAt" db:"submitted_at"`
	CompletedAt   time.Time `json:"completedAt,omitempty" db:"completed_at"`
}
