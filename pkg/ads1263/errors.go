package ads1263

import (
	"errors"
	"fmt"
)

var (
	ErrBadSignature    = errors.New("unexpected device signature")
	ErrNotAcknowledged = errors.New("register write not acknowledged")
	ErrUnsupported     = errors.New("unsupported setting")
	ErrNotConfigured   = errors.New("converter not configured")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrStale           = errors.New("no new conversion data")
	ErrChannelSwitched = errors.New("input multiplexer switched, result pending")
	ErrBusTimeout      = errors.New("bus transaction timed out")
	ErrBusBusy         = errors.New("bus busy with timed out transaction")
	ErrShutdown        = errors.New("converter shut down")
)

// InitError reports that the converter did not respond or identified as
// something other than an ADS1263.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("converter initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ConfigError reports an invalid settings combination or a register write
// that did not read back.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("converter configuration failed: %v", e.Err)
	}
	return fmt.Sprintf("converter configuration failed: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ReadError reports a failed conversion read. It is transient: the next
// ready event may succeed.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("conversion read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
