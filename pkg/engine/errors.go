package engine

import (
	"errors"
	"fmt"

	"github.com/optoutdao/engine/pkg/brokers"
	"github.com/optoutdao/engine/pkg/ledger"
	"github.com/optoutdao/engine/pkg/processors"
	"github.com/optoutdao/engine/pkg/stakes"
	"github.com/optoutdao/engine/pkg/tasks"
)

var (
	// ErrUnauthorized is returned when a non-owner invokes a privileged
	// command. Not retryable by the same caller.
	ErrUnauthorized = errors.New("engine: caller is not the owner")
	// ErrHalted is returned for every mutating command while the engine is
	// paused. Queries are unaffected.
	ErrHalted = errors.New("engine: halted")
)

// Kind categorizes a command failure for the caller.
type Kind string

const (
	// KindValidation: bad input shape; safe to retry after correcting input.
	KindValidation Kind = "validation"
	// KindPrecondition: world state does not admit the command yet.
	KindPrecondition Kind = "precondition"
	// KindAuthorization: caller lacks the required privilege.
	KindAuthorization Kind = "authorization"
	// KindNotFound: stale or invalid entity reference.
	KindNotFound Kind = "not_found"
	// KindHalted: engine is administratively paused.
	KindHalted Kind = "halted"
	// KindInternal: anything the engine cannot attribute to the caller.
	KindInternal Kind = "internal"
)

// Error is the structured failure every command returns: a kind for
// programmatic handling plus the underlying reason.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps err in an Error with the kind the engine's error taxonomy
// assigns to it. nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	return &Error{Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrHalted):
		return KindHalted
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, brokers.ErrEmptyField),
		errors.Is(err, stakes.ErrNoProcessorsSelected),
		errors.Is(err, stakes.ErrTooManyProcessors),
		errors.Is(err, stakes.ErrDuplicateProcessor):
		return KindValidation
	case errors.Is(err, brokers.ErrNotFound),
		errors.Is(err, processors.ErrNotRegistered),
		errors.Is(err, stakes.ErrNotStaking),
		errors.Is(err, tasks.ErrInvalidTaskID):
		return KindNotFound
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, brokers.ErrAlreadyVerified),
		errors.Is(err, processors.ErrInsufficientStake),
		errors.Is(err, processors.ErrAlreadyRegistered),
		errors.Is(err, stakes.ErrInsufficientStake),
		errors.Is(err, stakes.ErrIneligibleProcessor),
		errors.Is(err, stakes.ErrAlreadyStaking),
		errors.Is(err, tasks.ErrBrokerNotVerified),
		errors.Is(err, tasks.ErrUserNotStaked),
		errors.Is(err, tasks.ErrNoEligibleProcessor),
		errors.Is(err, tasks.ErrNotAssignedProcessor),
		errors.Is(err, tasks.ErrProcessorSlashed),
		errors.Is(err, tasks.ErrAlreadyCompleted):
		return KindPrecondition
	default:
		return KindInternal
	}
}

// KindOf extracts the kind from a command error, KindInternal if it carries
// none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
