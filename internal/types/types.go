// Package types provides common type definitions for the estate sync service.
package types

// TxState represents the lifecycle state of a mutating ledger action.
type TxState string

const (
	// TxIdle represents a transaction that has not been submitted yet
	TxIdle TxState = "idle"
	// TxSubmitting represents a transaction being dispatched to the ledger
	TxSubmitting TxState = "submitting"
	// TxAwaitingConfirmation represents a transaction waiting for inclusion
	TxAwaitingConfirmation TxState = "awaiting_confirmation"
	// TxReconciling represents a confirmed transaction whose post-state is being re-fetched
	TxReconciling TxState = "reconciling"
	// TxSettled represents a confirmed and reconciled transaction (terminal)
	TxSettled TxState = "settled"
	// TxFailed represents a rejected or reverted transaction (terminal)
	TxFailed TxState = "failed"
)

// Terminal reports whether the state ends the transaction state machine.
func (s TxState) Terminal() bool {
	return s == TxSettled || s == TxFailed
}

// ActionKind identifies a mutating ledger workflow.
type ActionKind string

const (
	// ActionPurchase buys property tokens directly from the ledger
	ActionPurchase ActionKind = "purchase"
	// ActionSell returns property tokens to the ledger
	ActionSell ActionKind = "sell"
	// ActionCreateOrder lists tokens for resale on the marketplace
	ActionCreateOrder ActionKind = "create_order"
	// ActionCancelOrder withdraws a standing sell order
	ActionCancelOrder ActionKind = "cancel_order"
	// ActionFillOrder buys tokens from another party's sell order
	ActionFillOrder ActionKind = "fill_order"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Error codes used across the service layer.
const (
	// CodeNoProvider indicates no wallet capability is configured
	CodeNoProvider = "NO_PROVIDER"
	// CodeUnauthenticated indicates the operation requires an active session
	CodeUnauthenticated = "UNAUTHENTICATED"
	// CodeUserDenied indicates the wallet holder refused the request
	CodeUserDenied = "USER_DENIED"
	// CodeNotFound indicates a referenced entity is absent from the current view
	CodeNotFound = "NOT_FOUND"
	// CodeRemoteUnavailable indicates a transient ledger read failure
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	// CodeTransactionFailed indicates a write was rejected or reverted
	CodeTransactionFailed = "TRANSACTION_FAILED"
)
