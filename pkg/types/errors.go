package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the relay pipeline.
//
// ConfigurationError   - fatal, never retried (missing endpoints, no sender
//                        registered, no signing key).
// RetryableError       - transient transport faults (rate limiting, 5xx,
//                        network failures); retried inside the endpoint pool
//                        and the sender's retry wrapper.
// ExecutionError       - the destination chain accepted the transaction but
//                        execution reverted; reported in the RelayResult with
//                        diagnostic detail, never silently swallowed.
// Everything else is non-retryable and propagates immediately.

type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// RetryableError marks an underlying transport fault as retryable so the
// pool and retry wrapper rotate/retry instead of failing fast.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable transport error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err}
}

func IsRetryableError(err error) bool {
	var rtErr *RetryableError
	return errors.As(err, &rtErr)
}

// ExecutionError carries the diagnostic detail of an on-chain execution
// failure for operator inspection.
type ExecutionError struct {
	TxHash      string
	GasUsed     uint64
	Cost        string
	Description string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %s (tx=%s gasUsed=%d cost=%s)",
		e.Description, e.TxHash, e.GasUsed, e.Cost)
}

func IsExecutionError(err error) bool {
	var exErr *ExecutionError
	return errors.As(err, &exErr)
}
