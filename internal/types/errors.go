package types

import (
	"errors"
	"fmt"
)

// Device error kinds. Every error returned by a transport or controller
// matches exactly one of these with errors.Is.
var (
	ErrTimeout        = errors.New("TRANSPORT_TIMEOUT")
	ErrTransport      = errors.New("TRANSPORT_FAILURE")
	ErrProtocol       = errors.New("PROTOCOL_ERROR")
	ErrDeviceNotFound = errors.New("DEVICE_NOT_FOUND")
)

// DeviceError wraps a device failure with the operation that hit it.
// Fatal errors end the control session; the device has already been
// released when a fatal error is returned.
type DeviceError struct {
	Op    string
	Kind  error
	Err   error
	Fatal bool
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDeviceError builds a non-fatal device error.
func NewDeviceError(op string, kind, err error) *DeviceError {
	return &DeviceError{Op: op, Kind: kind, Err: err}
}

// AsFatal marks err as session-fatal. Non-device errors are classified as
// transport failures.
func AsFatal(op string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return &DeviceError{Op: de.Op, Kind: de.Kind, Err: de.Err, Fatal: true}
	}
	return &DeviceError{Op: op, Kind: ErrTransport, Err: err, Fatal: true}
}

// IsFatal reports whether err terminates the control session.
func IsFatal(err error) bool {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Fatal
	}
	return false
}

// ErrorCode maps a device error onto the code used in API error payloads.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "DEVICE_TIMEOUT"
	case errors.Is(err, ErrProtocol):
		return "DEVICE_PROTOCOL"
	case errors.Is(err, ErrDeviceNotFound):
		return "DEVICE_NOT_FOUND"
	case errors.Is(err, ErrTransport):
		return "DEVICE_TRANSPORT"
	default:
		return "DEVICE_500"
	}
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
