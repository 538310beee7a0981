package opname

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching.
var (
	ErrValidation   = errors.New("opname: validation failed")
	ErrState        = errors.New("opname: invalid state")
	ErrItemNotFound = errors.New("opname: item not found")
)

// Validation kinds.
const (
	KindUnresolvedDiscrepancies     = "unresolved discrepancies"
	KindDuplicateExpectedIdentifier = "duplicate expected identifier"
	KindActionNotPermitted          = "action not permitted for result"
	KindApproverNotAuthorized       = "approver not authorized"
	KindInvalidInput                = "invalid input"
)

// State kinds.
const (
	KindInvalidTransition   = "invalid transition"
	KindOperationNotAllowed = "operation not allowed"
)

// ValidationError means the caller supplied data that breaks an invariant.
// It is never retried automatically.
type ValidationError struct {
	Kind    string
	Message string
	ItemIDs []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.ItemIDs) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.ItemIDs, ", "))
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateError means the session's status forbids the operation.  The session is
// left unchanged.
type StateError struct {
	Kind string
	Op   string
	From SessionStatus
	To   SessionStatus
}

func (e *StateError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
	}
	return fmt.Sprintf("%s: %s while %s", e.Kind, e.Op, e.From)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

func invalidInput(msg string) error {
	return &ValidationError{Kind: KindInvalidInput, Message: msg}
}

func invalidTransition(from, to SessionStatus) error {
	return &StateError{Kind: KindInvalidTransition, From: from, To: to}
}

func notAllowed(op string, status SessionStatus) error {
	return &StateError{Kind: KindOperationNotAllowed, Op: op, From: status}
}

// AsValidation unwraps a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsState unwraps a StateError.
func AsState(err error) (*StateError, bool) {
	var se *StateError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
