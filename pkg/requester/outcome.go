package requester

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies how a request ended.
type ErrorKind int

const (
	OK ErrorKind = iota
	Timeout
	Network
	InvalidAddress
	// Unknown covers faults that are neither I/O nor addressing, such as a
	// panic raised by a transport or a method the requester cannot send.
	Unknown
)

func (k ErrorKind) String() string {
	switch k {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case Network:
		return "network"
	case InvalidAddress:
		return "invalid_address"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

var (
	// ErrInvalidAddress reports an address that cannot be turned into an HTTP target.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupportedMethod reports a Spec whose method is neither GET nor POST.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrCancelled is returned by Task.Wait for cancelled or superseded tasks.
	ErrCancelled = errors.New("request cancelled")
)

// StatusError reports an HTTP response whose status does not carry a readable body.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http response status %d", e.Code)
}

// PanicError wraps a value recovered from a panicking request worker.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("request worker panic: %v", e.Value)
}

// Outcome is the terminal result of a request.
type Outcome struct {
	TaskID     uint64
	Body       string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// Success builds a successful outcome carrying body.
func Success(body string) Outcome {
	return Outcome{Body: body, Kind: OK}
}

// Failure builds a failed outcome, deriving the kind from err.
func Failure(err error) Outcome {
	return Outcome{Kind: Classify(err), Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == OK }

// Classify maps an execution error onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return OK
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) || errors.Is(err, ErrUnsupportedMethod) {
		return Unknown
	}
	if errors.Is(err, ErrInvalidAddress) {
		return InvalidAddress
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Network
}
