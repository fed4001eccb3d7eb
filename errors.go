package volink

import (
	"errors"
	"fmt"
)

// Registry errors. Caller/configuration problems, never retried.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrAccessDenied   = errors.New("access denied")
)

// Value codec errors. Input/data problems, never retried.
var (
	ErrLengthMismatch  = errors.New("payload length mismatch")
	ErrUnrepresentable = errors.New("value not representable")
)

// Frame errors. Link-level corruption, retried up to Device.MaxAttempts.
var (
	ErrTruncated          = errors.New("truncated frame")
	ErrBadChecksum        = errors.New("bad checksum")
	ErrUnknownCommandType = errors.New("unknown command type")
)

// Transport errors. ShortWrite and Timeout are retried, Closed is fatal
// for the link and surfaced immediately.
var (
	ErrShortWrite = errors.New("short write")
	ErrTimeout    = errors.New("timeout")
	ErrClosed     = errors.New("transport closed")
)

// ErrDeviceError is returned when the controller answers with an error
// telegram instead of a response.
var ErrDeviceError = errors.New("device error telegram")

// CommandError is the terminal error of a failed transaction. It carries
// the command name and the number of attempts consumed, so a caller can
// tell a misconfigured registry from a flaky link.
type CommandError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
