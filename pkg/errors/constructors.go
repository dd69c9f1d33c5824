package errors

import (
	"time"
)

// Error code constants for monitoring and metrics
const (
	// Network error codes
	CodeNetworkFailure = "NETWORK_FAILURE"
	CodeRequestTimeout = "REQUEST_TIMEOUT"
	CodeRPCFailed      = "RPC_FAILED"

	// API error codes
	CodeAPIFailure    = "API_FAILURE"
	CodeHTTPStatus    = "HTTP_STATUS"
	CodeOrderRejected = "ORDER_REJECTED"

	// Validation / execution error codes
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeExecutionFailed  = "EXECUTION_FAILED"

	// Storage error codes
	CodeDatabaseFailure = "DATABASE_FAILURE"
	CodeMarkerConflict  = "MARKER_CONFLICT"

	// Funds / breaker / config error codes
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeCircuitOpen       = "CIRCUIT_OPEN"
	CodeInvalidConfig     = "INVALID_CONFIG"
)

// Per-kind defaults: retryability and severity follow the recovery table
// the engine's error handler consults.
//
//	NETWORK            retryable  medium
//	API                retryable  medium
//	VALIDATION         final      high
//	EXECUTION          final      high
//	DATABASE           retryable  high
//	INSUFFICIENT_FUNDS final      critical
//	CIRCUIT_BREAKER    retryable  high
//	CONFIGURATION      final      critical

func NewNetworkError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindNetwork, CodeNetworkFailure, message, Medium, true,
		component, operation, underlying, ctx...)
}

func NewAPIError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindAPI, CodeAPIFailure, message, Medium, true,
		component, operation, underlying, ctx...)
}

func NewValidationError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindValidation, CodeValidationFailed, message, High, false,
		component, operation, underlying, ctx...)
}

func NewExecutionError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindExecution, CodeExecutionFailed, message, High, false,
		component, operation, underlying, ctx...)
}

func NewDatabaseError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindDatabase, CodeDatabaseFailure, message, High, true,
		component, operation, underlying, ctx...)
}

func NewInsufficientFundsError(component, operation, message string, ctx ...ContextOption) TradingError {
	return newError(KindInsufficientFunds, CodeInsufficientFunds, message, Critical, false,
		component, operation, nil, ctx...)
}

func NewCircuitBreakerError(component, operation, message string, ctx ...ContextOption) TradingError {
	return newError(KindCircuitBreaker, CodeCircuitOpen, message, High, true,
		component, operation, nil, ctx...)
}

func NewConfigurationError(component, operation, message string, underlying error, ctx ...ContextOption) TradingError {
	return newError(KindConfiguration, CodeInvalidConfig, message, Critical, false,
		component, operation, underlying, ctx...)
}

// NewAPIStatusError builds an API error from an HTTP status. Server-side
// statuses stay retryable; client-side statuses are final.
func NewAPIStatusError(component, operation string, status int, message string, ctx ...ContextOption) TradingError {
	e := newError(KindAPI, CodeHTTPStatus, message, Medium, status >= 500,
		component, operation, nil, ctx...)
	e.context.Metadata["status"] = status
	return e
}

// newError creates a baseError with consistent context
func newError(kind Kind, code, message string, severity Severity, retryable bool,
	component, operation string, underlying error, contextOptions ...ContextOption) *baseError {

	context := ErrorContext{
		Component: component,
		Operation: operation,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	for _, opt := range contextOptions {
		opt(&context)
	}

	return &baseError{
		kind:       kind,
		code:       code,
		message:    message,
		severity:   severity,
		retryable:  retryable,
		context:    context,
		underlying: underlying,
	}
}

// ContextOption allows flexible context configuration
type ContextOption func(*ErrorContext)

// WithActivityID adds the activity id to error context
func WithActivityID(id string) ContextOption {
	return func(ctx *ErrorContext) {
		ctx.Metadata["activity_id"] = id
	}
}

// WithTxHash adds a transaction hash to error context
func WithTxHash(txHash string) ContextOption {
	return func(ctx *ErrorContext) {
		ctx.Metadata["tx_hash"] = txHash
	}
}

// WithMetadata adds arbitrary metadata to error context
func WithMetadata(key string, value interface{}) ContextOption {
	return func(ctx *ErrorContext) {
		if ctx.Metadata == nil {
			ctx.Metadata = make(map[string]interface{})
		}
		ctx.Metadata[key] = value
	}
}
