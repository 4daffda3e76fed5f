package rpcpool

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/knotx/relayer/pkg/types"
)

// JSON-RPC error code many providers return when a request is rate limited.
const rpcCodeRateLimited = -32005

// Retryable classifies an error from an endpoint operation. Rate limiting
// (HTTP 429 or the rate-limit RPC code), 5xx responses and transport-level
// network failures rotate to the next endpoint; everything else, including
// other 4xx responses and configuration faults, propagates immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if types.IsConfigurationError(err) {
		return false
	}
	if types.IsRetryableError(err) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rpcCodeRateLimited {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Providers are not consistent about error types; fall back to matching
	// the usual transport failure strings.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429",
		"too many requests",
		"rate limit",
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"no such host",
		"network error",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
