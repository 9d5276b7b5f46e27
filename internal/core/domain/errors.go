package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable code. Codes are GM-<AREA>-<NNNN>;
// the number follows HTTP status classes where one fits.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// NewDomainError creates a sentinel error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Error renders "[code] message" with ": details" when set.
func (e *DomainError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

// Unwrap returns the cause.
func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any DomainError with the same code, so errors.Is works
// against the sentinels after WithDetails or WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError reports whether err wraps a DomainError with code, or any
// DomainError when code is empty.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of the DomainError err wraps, or "".
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Temporary reports whether err is a condition the client recovers from
// by retrying later: timeouts, an unavailable cluster, rate limiting or a
// buffer overflow.
func Temporary(err error) bool {
	for _, t := range []*DomainError{
		ErrDiscoveryTimeout,
		ErrHeartbeatTimeout,
		ErrClusterUnavailable,
		ErrRateLimited,
		ErrBufferOverflow,
	} {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Protocol errors.
var (
	// ErrDiscoveryTimeout indicates no contact answered a discovery request
	// within its deadline. Retried per backoff, never fatal.
	ErrDiscoveryTimeout = NewDomainError("GM-DISC-5040", "discovery timeout")

	// ErrHeartbeatTimeout indicates the active contact stopped acknowledging
	// heartbeats and is presumed dead.
	ErrHeartbeatTimeout = NewDomainError("GM-HBT-5041", "heartbeat timeout")

	// ErrClusterUnavailable indicates every known contact is exhausted.
	ErrClusterUnavailable = NewDomainError("GM-CLU-5030", "cluster unavailable")

	// ErrBufferOverflow indicates the oldest buffered message was dropped.
	ErrBufferOverflow = NewDomainError("GM-BUF-4290", "pending buffer overflow")

	// ErrSessionStopped indicates the session was stopped and accepts no more work.
	ErrSessionStopped = NewDomainError("GM-SES-4100", "session stopped")

	// ErrReceptionistStopped indicates the receptionist registry is shut down.
	ErrReceptionistStopped = NewDomainError("GM-RCP-5031", "receptionist stopped")
)

// Delivery errors.
var (
	// ErrUnknownTarget indicates a service path could not be resolved on a contact.
	ErrUnknownTarget = NewDomainError("GM-DLV-4040", "unknown target")

	// ErrDeliveryFailed indicates the resolved service rejected the message.
	ErrDeliveryFailed = NewDomainError("GM-DLV-5020", "delivery failed")

	// ErrRateLimited indicates a client exceeded the receptionist request rate.
	ErrRateLimited = NewDomainError("GM-DLV-4291", "too many requests")
)

// Configuration errors.
var (
	// ErrInvalidConfiguration indicates a configuration that cannot work,
	// such as an empty seed set or a non-positive interval. Fatal at construction.
	ErrInvalidConfiguration = NewDomainError("GM-CFG-4000", "invalid configuration")

	// ErrInvalidArgument indicates an invalid call argument.
	ErrInvalidArgument = NewDomainError("GM-ARG-1001", "invalid argument")
)

var knownErrors = map[string]*DomainError{}

func init() {
	for _, e := range []*DomainError{
		ErrDiscoveryTimeout,
		ErrHeartbeatTimeout,
		ErrClusterUnavailable,
		ErrBufferOverflow,
		ErrSessionStopped,
		ErrReceptionistStopped,
		ErrUnknownTarget,
		ErrDeliveryFailed,
		ErrRateLimited,
		ErrInvalidConfiguration,
		ErrInvalidArgument,
	} {
		knownErrors[e.Code] = e
	}
}

// LookupError returns the sentinel error registered under code.
func LookupError(code string) (*DomainError, bool) {
	e, ok := knownErrors[code]
	return e, ok
}
