package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/sample"
)

const (
	BucketSamples = "samples"
	BucketMeta    = "meta"
)

// openTimeout bounds waiting for the file lock held by another process.
const openTimeout = time.Second

// Bolt stores samples in a bbolt database keyed by timestamp. Every Append
// is its own committed transaction.
type Bolt struct {
	mu     sync.Mutex
	db     *bbolt.DB
	count  int
	last   time.Time
	closed bool
}

var _ Sink = (*Bolt)(nil)

// OpenBolt creates a fresh database at path and records meta in the meta bucket.
func OpenBolt(path string, meta map[string]string) (*Bolt, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Op: "open", Err: err}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketSamples)); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists([]byte(BucketMeta))
		if err != nil {
			return err
		}
		for k, v := range meta {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	return &Bolt{db: db}, nil
}

// Append commits one sample.
func (s *Bolt) Append(smp sample.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &Error{Op: "append", Err: ErrClosed}
	}
	if s.count > 0 && !smp.Timestamp.After(s.last) {
		return &Error{Op: "append", Err: fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, FormatTimestamp(smp.Timestamp), FormatTimestamp(s.last))}
	}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketSamples))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", BucketSamples)
		}
		return b.Put(EncodeKey(smp.Timestamp), EncodeValue(smp.Voltage))
	}); err != nil {
		return &Error{Op: "append", Err: err}
	}
	s.count++
	s.last = smp.Timestamp
	return nil
}

// Count returns the number of samples committed.
func (s *Bolt) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close closes the database.
func (s *Bolt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	path := s.db.Path()
	if err := s.db.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	log.Debug("Bolt store %s closed after %d samples", path, s.count)
	return nil
}

// EncodeKey orders keys by time: big-endian Unix nanoseconds. Times before
// the epoch are not supported.
func EncodeKey(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("invalid key length %d", len(b))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))), nil
}

// EncodeValue stores the voltage as IEEE 754 bits.
func EncodeValue(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid value length %d", len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}
