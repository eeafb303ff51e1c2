package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution is the idempotency record of one standing order on one calendar date.
// It is written in the same unit of work as the funds movement it guards.
type Execution struct {
	OrderID    uuid.UUID
	RunDate    time.Time // calendar date
	EntryID    uuid.UUID // source-side ledger entry written by the execution
	ExecutedAt time.Time
}
