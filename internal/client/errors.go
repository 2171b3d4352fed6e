package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"

	"github.com/muurk/vesclink/internal/urls"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-200 status code
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ServerError is returned by every Client method that talks to a server.
type ServerError struct {
	Type           ErrorType
	Message        string
	StatusCode     int // HTTP errors only
	Err            error
	NetworkSubtype NetworkErrorSubtype
	Retryable      bool
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ServerError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport failure to a ServerError.
func classifyNetworkError(message string, err error) *ServerError {
	e := &ServerError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}

	var (
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		e.Retryable = false
	case errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		e.Type = ErrTypeTimeout
	case errors.As(err, &urlErr) && urlErr.Timeout():
		e.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		e.Type = ErrTypeDNS
		e.Retryable = false
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Type = ErrTypeConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH):
		e.NetworkSubtype = NetworkErrorHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		e.NetworkSubtype = NetworkErrorNetworkUnreachable
	}
	return e
}

// newHTTPError creates an HTTP-level error. Server errors are retryable.
func newHTTPError(statusCode int, message string) *ServerError {
	return &ServerError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

func newParseError(message string, err error) *ServerError {
	return &ServerError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

func asServerError(err error) (*ServerError, bool) {
	var se *ServerError
	ok := errors.As(err, &se)
	return se, ok
}

// IsNetworkError reports whether err is a network failure of any kind.
func IsNetworkError(err error) bool {
	se, ok := asServerError(err)
	if !ok {
		return false
	}
	switch se.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// IsHTTPError reports whether err is a non-200 response.
func IsHTTPError(err error) bool {
	se, ok := asServerError(err)
	return ok && se.Type == ErrTypeHTTP
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	se, ok := asServerError(err)
	return ok && se.Retryable
}

// Troubleshooting returns hints suited to err.
func Troubleshooting(err error) []string {
	se, ok := asServerError(err)
	if !ok {
		return nil
	}
	return append(tipsFor(se), "More help: "+urls.TroubleshootingGuide)
}

func tipsFor(se *ServerError) []string {
	switch se.Type {
	case ErrTypeTimeout:
		return []string{
			"The server did not respond in time",
			"Check that 'vesclink serve' is still running",
			"Try a longer --timeout",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"Nothing is listening at that address",
			"Check the port (default 8470) and that the server started",
		}
	case ErrTypeDNS:
		return []string{
			"Use the IP address instead of the hostname",
			"Run 'vesclink scan' to find advertised servers",
		}
	case ErrTypeHTTP:
		if se.StatusCode == 404 {
			return []string{"The address answered but is not a vesclink server"}
		}
		return []string{"Check the server log for errors"}
	case ErrTypeParse:
		return []string{"The server and this client may be different vesclink versions"}
	}

	switch se.NetworkSubtype {
	case NetworkErrorHostUnreachable:
		return []string{"The host is not reachable", "Check that both machines are on the same network"}
	case NetworkErrorNetworkUnreachable:
		return []string{"This machine cannot reach that network", "Check the network adapter settings"}
	}
	return []string{"Check your network connection"}
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	se, ok := asServerError(err)
	if !ok {
		return err.Error()
	}

	switch se.Type {
	case ErrTypeTimeout:
		return "Server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Server refused connection"
	case ErrTypeDNS:
		return "Cannot resolve server hostname"
	case ErrTypeHTTP:
		return fmt.Sprintf("Server error (HTTP %d)", se.StatusCode)
	case ErrTypeParse:
		return "Failed to parse server response"
	}
	switch se.NetworkSubtype {
	case NetworkErrorHostUnreachable:
		return "Server unreachable"
	case NetworkErrorNetworkUnreachable:
		return "Network unreachable"
	}
	return "Network error"
}
