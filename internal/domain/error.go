package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")

	// Reconciliation errors
	ErrAlreadyProcessed  = errors.New("event already processed")
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrUnknownGateway    = errors.New("unknown payment gateway")
	ErrUnknownEventType  = errors.New("unknown webhook event type")
	ErrNoFallbackModel   = errors.New("no active free-tier model available for downgrade")
	ErrQueueItemTerminal = errors.New("webhook queue item is in a terminal state")

	// ErrTransactionMissing signals a refund or chargeback event that points
	// at a payment this system never recorded.
	ErrTransactionMissing = errors.New("original payment transaction not found")
)
