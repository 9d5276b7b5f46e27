package receptionistv1

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// ErrorCodeHeader carries the domain error code of a failed call.
const ErrorCodeHeader = "Gm-Error-Code"

// ToConnectError converts err to a Connect error, keeping the domain
// error code in the error metadata.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, domain.ErrUnknownTarget):
		code = connect.CodeNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		code = connect.CodeInvalidArgument
	case errors.Is(err, domain.ErrRateLimited):
		code = connect.CodeResourceExhausted
	case errors.Is(err, domain.ErrReceptionistStopped):
		code = connect.CodeUnavailable
	case errors.Is(err, domain.ErrDeliveryFailed):
		code = connect.CodeAborted
	}

	cerr := connect.NewError(code, err)
	if dc := domain.GetErrorCode(err); dc != "" {
		cerr.Meta().Set(ErrorCodeHeader, dc)
	}
	return cerr
}

// FromConnectError restores the domain error carried by a Connect error.
// Errors without a known domain code are returned unchanged.
func FromConnectError(err error) error {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return err
	}
	sentinel, ok := domain.LookupError(ce.Meta().Get(ErrorCodeHeader))
	if !ok {
		return err
	}
	return sentinel.WithDetails(ce.Message()).WithCause(err)
}
