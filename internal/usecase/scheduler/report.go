package scheduler

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/executor"
)

// FailureReason classifies why a due order was not executed
type FailureReason string

const (
	ReasonInsufficientFunds  FailureReason = "INSUFFICIENT_FUNDS"
	ReasonAccountNotFound    FailureReason = "ACCOUNT_NOT_FOUND"
	ReasonInvalidFrequency   FailureReason = "INVALID_FREQUENCY"
	ReasonPersistenceFailure FailureReason = "PERSISTENCE_FAILURE"
	ReasonInternal           FailureReason = "INTERNAL"
)

// Failure is one itemized entry of an ExecutionReport
type Failure struct {
	OrderID uuid.UUID
	Reason  FailureReason
	Message string
}

// ExecutionReport aggregates one run of the schedule driver
type ExecutionReport struct {
	AsOf       time.Time
	Candidates int
	Executed   int
	// Skipped counts candidates not due today, already executed today, or canceled since selection
	Skipped  int
	Failures []Failure
	Duration time.Duration
}

// FailureCounts groups the failures by reason
func (r *ExecutionReport) FailureCounts() map[FailureReason]int {
	counts := make(map[FailureReason]int, len(r.Failures))
	for _, f := range r.Failures {
		counts[f.Reason]++
	}
	return counts
}

func reasonForOutcome(outcome executor.Outcome) FailureReason {
	switch outcome {
	case executor.OutcomeInsufficientFunds:
		return ReasonInsufficientFunds
	case executor.OutcomeAccountNotFound:
		return ReasonAccountNotFound
	}
	return ReasonInternal
}

func reasonForError(err error) FailureReason {
	switch {
	case errors.Is(err, domain.ErrInvalidFrequency):
		return ReasonInvalidFrequency
	case errors.Is(err, domain.ErrAccountNotFound):
		return ReasonAccountNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, domain.ErrPersistence):
		return ReasonPersistenceFailure
	}
	return ReasonInternal
}
