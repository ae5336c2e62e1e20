// Package sink persists samples in time order.
package sink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itohio/gobridge/pkg/sample"
)

// Store formats.
const (
	KindCSV  = "csv"
	KindBolt = "bolt"
)

var (
	ErrClosed     = errors.New("sink closed")
	ErrOutOfOrder = errors.New("timestamp not after previous sample")
)

// Sink is an append-only store of samples. A successful Append is durable
// against process termination.
type Sink interface {
	Append(s sample.Sample) error
	// Close flushes and releases the store. Safe to call more than once.
	Close() error
	// Count returns the number of samples appended.
	Count() int
}

// Error reports a failed store operation. It is fatal for an acquisition.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Options tunes the store created by Open.
type Options struct {
	// SyncEvery fsyncs a CSV store every N rows. Zero syncs only on Close.
	SyncEvery int
	// Meta is recorded alongside the samples by stores that support it.
	Meta map[string]string
}

// Open creates a store of the given kind at path, truncating previous content.
func Open(kind, path string, opts Options) (Sink, error) {
	switch strings.ToLower(kind) {
	case KindCSV, "":
		s, err := CreateCSV(path, opts.SyncEvery)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindBolt:
		s, err := OpenBolt(path, opts.Meta)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, &Error{Op: "open", Err: fmt.Errorf("unknown store kind %q", kind)}
}
