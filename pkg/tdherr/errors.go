// Package tdherr contains helper functions and types to work with errors
// across the indexer. Each failure a job can hit maps to exactly one Kind so
// callers can decide between retrying, throttling and aborting.
package tdherr

import "errors"

// Kind classifies an indexer error.
type Kind int

const (
	// KindGeneral is an unexpected internal failure.
	KindGeneral Kind = iota
	// KindChainRead is a transport or timeout failure talking to the chain
	// endpoint. The reader never retries these itself; retry policy is owned
	// by callers.
	KindChainRead
	// KindRateLimited means the chain endpoint rejected a call for rate
	// limiting. A run hitting this is throttled, not failed.
	KindRateLimited
	// KindLedgerInvariant means applying deltas would drive a balance
	// negative. Fatal: indicates missing history or a decoding defect.
	KindLedgerInvariant
	// KindStoreLocked is a transient database lock/serialization conflict,
	// retried with backoff before becoming fatal.
	KindStoreLocked
	// KindValidation is a precondition failure detected before any mutation,
	// e.g. a scoring target block ahead of the ledger watermark.
	KindValidation
	// KindDecode is a per-log decode failure, logged and skipped.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindChainRead:
		return "ChainReadError"
	case KindRateLimited:
		return "RateLimited"
	case KindLedgerInvariant:
		return "LedgerInvariantViolation"
	case KindStoreLocked:
		return "StoreLocked"
	case KindValidation:
		return "ValidationError"
	case KindDecode:
		return "DecodeWarning"
	default:
		return "GeneralError"
	}
}

// Error is the indexer error type carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Kind.String() + ": " + e.Message
	}
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks that err is a tdherr.Error with the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ChainRead wraps a chain transport failure.
func ChainRead(err error) error {
	return &Error{Kind: KindChainRead, Err: err}
}

// RateLimited wraps a chain rate-limit rejection.
func RateLimited(err error) error {
	return &Error{Kind: KindRateLimited, Err: err}
}

// LedgerInvariant reports a balance that would go negative.
func LedgerInvariant(message string) error {
	return &Error{Kind: KindLedgerInvariant, Message: message}
}

// StoreLocked wraps a transient database lock conflict.
func StoreLocked(err error) error {
	return &Error{Kind: KindStoreLocked, Err: err}
}

// Validation reports a failed precondition.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Decode wraps a single-log decode failure.
func Decode(err error, message string) error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}
