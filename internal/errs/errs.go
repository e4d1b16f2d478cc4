// Package errs models the engine's error taxonomy as a typed sum type
// rather than ad hoc fmt.Errorf-wrapped strings. Kinds carry a policy:
// whether the condition is retryable, fatal, or a normal operational
// outcome.
package errs

import "fmt"

// Kind is one of the error kinds from .
type Kind int

const (
	Internal Kind = iota
	Configuration
	Auth
	Network
	RateLimit
	ExchangeRejected
	InsufficientFunds
	RiskBlocked
	DataStale
	DataMissing
	DatabaseTransient
	DatabaseCorrupt
	MLModel
	Notifier
	CircuitOpen
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Auth:
		return "auth"
	case Network:
		return "network"
	case RateLimit:
		return "rate_limit"
	case ExchangeRejected:
		return "exchange_rejected"
	case InsufficientFunds:
		return "insufficient_funds"
	case RiskBlocked:
		return "risk_blocked"
	case DataStale:
		return "data_stale"
	case DataMissing:
		return "data_missing"
	case DatabaseTransient:
		return "database_transient"
	case DatabaseCorrupt:
		return "database_corrupt"
	case MLModel:
		return "ml_model"
	case Notifier:
		return "notifier"
	case CircuitOpen:
		return "circuit_open"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it, so callers can branch on Kind without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable reports whether this kind is a transient condition
// (network, rate limit, open circuit). The exchange port's REST
// retries are configured in resty and do not consult it.
func (k Kind) Retryable() bool {
	switch k {
	case Network, RateLimit, CircuitOpen:
		return true
	default:
		return false
	}
}

// Fatal reports whether the engine must refuse to start or continue
// trading when this kind surfaces.
func (k Kind) Fatal() bool {
	switch k {
	case Auth, Configuration, DatabaseCorrupt:
		return true
	default:
		return false
	}
}

// OfKind reports whether err (or one it wraps) carries the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
