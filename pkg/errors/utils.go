package errors

import (
	"errors"
)

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var tradingErr TradingError
	if errors.As(err, &tradingErr) {
		return tradingErr.Retryable()
	}
	return false
}

// IsCritical checks if error is critical severity
func IsCritical(err error) bool {
	var tradingErr TradingError
	if errors.As(err, &tradingErr) {
		return tradingErr.Severity() == Critical
	}
	return false
}

// IsKind checks if an error belongs to the given failure class
func IsKind(err error, kind Kind) bool {
	var tradingErr TradingError
	if errors.As(err, &tradingErr) {
		return tradingErr.Kind() == kind
	}
	return false
}

// GetErrorCode extracts the error code, returns "UNKNOWN" for other errors
func GetErrorCode(err error) string {
	var tradingErr TradingError
	if errors.As(err, &tradingErr) {
		return tradingErr.Code()
	}
	return "UNKNOWN"
}

// LogFields extracts structured logging context from an error, shaped for
// zap's SugaredLogger.With.
func LogFields(err error) []interface{} {
	var tradingErr TradingError
	if errors.As(err, &tradingErr) {
		ctx := tradingErr.Context()
		fields := []interface{}{
			"code", tradingErr.Code(),
			"type", tradingErr.Kind().String(),
			"severity", tradingErr.Severity().String(),
			"retryable", tradingErr.Retryable(),
			"component", ctx.Component,
			"operation", ctx.Operation,
		}
		for k, v := range ctx.Metadata {
			fields = append(fields, k, v)
		}
		return fields
	}
	return []interface{}{"error_type", "standard_error"}
}
