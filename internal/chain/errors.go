package chain

import (
	"errors"
)

// Kind groups failures by the condition that caused them.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindValidation
	KindState
	KindProof
	KindExternalCall
	KindInvariant
	KindReentrancy
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindProof:
		return "proof"
	case KindExternalCall:
		return "external_call"
	case KindInvariant:
		return "invariant"
	case KindReentrancy:
		return "reentrancy"
	default:
		return "unknown"
	}
}

// Error is a named contract failure. Instances are compared by identity,
// so every package declares its own sentinels with NewError.
type Error struct {
	kind Kind
	name string
}

// NewError declares a named failure of the given kind.
func NewError(kind Kind, name string) *Error {
	return &Error{kind: kind, name: name}
}

func (e *Error) Error() string {
	return e.name
}

// Kind returns the failure class.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf returns the kind of the first chain error in err's tree.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

var (
	ErrUnauthorized        = NewError(KindAuthorization, "Unauthorized")
	ErrZeroAddress         = NewError(KindValidation, "ZeroAddress")
	ErrInsufficientBalance = NewError(KindState, "InsufficientBalance")
	ErrPaymentFailed       = NewError(KindExternalCall, "PaymentFailed")
	ErrReentrancy          = NewError(KindReentrancy, "ReentrancyGuardReentrantCall")
	ErrAlreadyRegistered   = NewError(KindState, "AlreadyRegistered")
)
