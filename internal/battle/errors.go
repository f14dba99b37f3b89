package battle

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation     = errors.New("invalid action")
	ErrPrecondition   = errors.New("precondition not met")
	ErrSessionExpired = errors.New("session expired")
	ErrInternal       = errors.New("internal error")
)

// BlockReason explains why a transition was refused.
type BlockReason string

const (
	BlockNotAuthorized    BlockReason = "not_authorized"
	BlockNoSession        BlockReason = "no_session"
	BlockSetupIncomplete  BlockReason = "setup_incomplete"
	BlockMissingPositions BlockReason = "missing_positions"
	BlockMissingTarget    BlockReason = "objective_target_missing"
	BlockWrongPhase       BlockReason = "wrong_phase"
	BlockBusy             BlockReason = "turn_in_progress"
)

// ValidationError rejects an action without touching session state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PreconditionError blocks a requested transition. The session is unaffected.
type PreconditionError struct {
	SessionID string
	Reason    BlockReason
	Detail    []string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
	if len(e.Detail) > 0 {
		msg += " (" + strings.Join(e.Detail, ", ") + ")"
	}
	return msg
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// SessionExpiredError is returned for a session or combatant that is no longer present.
type SessionExpiredError struct {
	SessionID string
	EntityID  string
}

func (e *SessionExpiredError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("session %s: %s is no longer in the battle", e.SessionID, e.EntityID)
	}
	return fmt.Sprintf("session %s has ended", e.SessionID)
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// InternalError wraps an unexpected failure, including recovered panics.
type InternalError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("session %s: %s failed: %v", e.SessionID, e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// recovered converts a panic value into an InternalError.
func recovered(sessionID, op string, r any) *InternalError {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	return &InternalError{SessionID: sessionID, Op: op, Err: err}
}
