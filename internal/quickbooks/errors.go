package quickbooks

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel failures for upstream query rejections. The messages mirror what
// QuickBooks callers expect to see surfaced verbatim.
var (
	ErrUnauthorized = errors.New("Unauthorized: Token may be invalid or expired")
	ErrForbidden    = errors.New("Forbidden: Application may not have the required permissions")
)

// BadRequestError carries the upstream's response body for a 400 reply.
type BadRequestError struct {
	Body string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("Bad Request: %s", e.Body)
}

// ServerError is returned for 5xx upstream replies. Server errors are not
// retried, only rate limits are.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("QuickBooks API server error: %d", e.StatusCode)
}

// RateLimitError is returned once every attempt was consumed by 429 replies.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds", int(e.RetryAfter.Seconds()))
}

// CommunicationError wraps a transport-level failure that survived the retry
// budget.
type CommunicationError struct {
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("Failed to communicate with QuickBooks API: %v", e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// ParseError wraps a JSON decode failure for a response body that does not
// look like an upstream error message.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Invalid JSON response from QuickBooks API: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UpstreamError carries a non-JSON response body that mentions an error.
type UpstreamError struct {
	Body string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("QuickBooks API Error: %s", e.Body)
}

// AuthExchangeError is returned when the token endpoint rejects a grant.
type AuthExchangeError struct {
	StatusCode int
	Body       string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("QuickBooks token request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsDomainError reports whether err belongs to the client's failure taxonomy,
// meaning the boundary should answer with a 400-class response instead of a
// server fault.
func IsDomainError(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return true
	}
	var (
		badRequest    *BadRequestError
		serverErr     *ServerError
		rateLimit     *RateLimitError
		communication *CommunicationError
		parse         *ParseError
		upstream      *UpstreamError
		authExchange  *AuthExchangeError
	)
	return errors.As(err, &badRequest) ||
		errors.As(err, &serverErr) ||
		errors.As(err, &rateLimit) ||
		errors.As(err, &communication) ||
		errors.As(err, &parse) ||
		errors.As(err, &upstream) ||
		errors.As(err, &authExchange)
}
