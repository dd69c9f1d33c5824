package errors

import (
	"errors"
	"strings"
)

// RecoveryStrategy is what the engine's error handler should do next.
type RecoveryStrategy int

const (
	RecoverySkip RecoveryStrategy = iota
	RecoveryRetry
	RecoveryCircuitBreak
	RecoveryShutdown
)

func (r RecoveryStrategy) String() string {
	switch r {
	case RecoverySkip:
		return "skip"
	case RecoveryRetry:
		return "retry"
	case RecoveryCircuitBreak:
		return "circuit_break"
	case RecoveryShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Classify promotes an arbitrary failure to a TradingError. Already-typed
// errors pass through unchanged. Opaque errors are classified by substring
// heuristics on the lowercased message; this is a legacy fallback for
// third-party errors that cannot carry a kind, and the rules are checked
// in a fixed order because several of them overlap ("connection failed"
// matches both the database and network rules).
func Classify(err error, component, operation string) TradingError {
	if err == nil {
		return nil
	}

	var typed TradingError
	if errors.As(err, &typed) {
		return typed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "network", "connection", "enotfound", "econnrefused"):
		return NewNetworkError(component, operation, "network failure", err)
	case containsAny(msg, "mongo", "database") || (strings.Contains(msg, "connection") && strings.Contains(msg, "failed")):
		return NewDatabaseError(component, operation, "database failure", err)
	case containsAny(msg, "api", "http") || (strings.Contains(msg, "request") && strings.Contains(msg, "failed")):
		return NewAPIError(component, operation, "api request failure", err)
	case strings.Contains(msg, "insufficient") && strings.Contains(msg, "balance"):
		return NewInsufficientFundsError(component, operation, err.Error())
	case containsAny(msg, "validation", "invalid"):
		return NewValidationError(component, operation, "validation failure", err)
	default:
		return NewExecutionError(component, operation, "execution failure", err)
	}
}

// Recovery chooses the handler action for a classified error: retry for
// transient network/API failures, open the circuit for database trouble,
// shut the process down on critical final errors, otherwise skip the
// activity and move on.
func Recovery(err TradingError) RecoveryStrategy {
	if err == nil {
		return RecoverySkip
	}
	switch {
	case err.Kind() == KindNetwork || err.Kind() == KindAPI:
		if err.Retryable() {
			return RecoveryRetry
		}
		return RecoverySkip
	case err.Kind() == KindDatabase:
		return RecoveryCircuitBreak
	case !err.Retryable() && err.Severity() == Critical:
		return RecoveryShutdown
	default:
		return RecoverySkip
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
