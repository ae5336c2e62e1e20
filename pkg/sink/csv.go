package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/sample"
)

// Header is the first row of every CSV store.
var Header = []string{"timestamp", "voltage"}

// CSV writes samples as a text table. Every row is flushed to the file as
// soon as it is appended.
type CSV struct {
	mu        sync.Mutex
	f         *os.File
	w         *csv.Writer
	syncEvery int
	count     int
	last      time.Time
	closed    bool
}

var _ Sink = (*CSV)(nil)

// CreateCSV truncates path and writes the header. syncEvery > 0 also fsyncs
// the file every syncEvery rows.
func CreateCSV(path string, syncEvery int) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	s := &CSV{
		f:         f,
		w:         csv.NewWriter(f),
		syncEvery: syncEvery,
	}
	if err := s.write(Header); err != nil {
		f.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	return s, nil
}

// Append writes one row.
func (s *CSV) Append(smp sample.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &Error{Op: "append", Err: ErrClosed}
	}
	if s.count > 0 && !smp.Timestamp.After(s.last) {
		return &Error{Op: "append", Err: fmt.Errorf("%w: %s <= %s", ErrOutOfOrder, FormatTimestamp(smp.Timestamp), FormatTimestamp(s.last))}
	}
	if err := s.write(Record(smp)); err != nil {
		return &Error{Op: "append", Err: err}
	}
	s.count++
	s.last = smp.Timestamp

	if s.syncEvery > 0 && s.count%s.syncEvery == 0 {
		if err := s.f.Sync(); err != nil {
			return &Error{Op: "sync", Err: err}
		}
	}
	return nil
}

func (s *CSV) write(rec []string) error {
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Count returns the number of rows written, excluding the header.
func (s *CSV) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes, syncs and closes the file.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return &Error{Op: "close", Err: err}
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return &Error{Op: "close", Err: err}
	}
	if err := s.f.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	log.Debug("CSV store %s closed after %d samples", s.f.Name(), s.count)
	return nil
}

// Record formats one sample as a CSV row.
func Record(smp sample.Sample) []string {
	return []string{
		FormatTimestamp(smp.Timestamp),
		strconv.FormatFloat(smp.Voltage, 'g', 10, 64),
	}
}

// FormatTimestamp renders t as Unix seconds with nanosecond precision, built
// from the integer parts so no digit is lost to float rounding.
func FormatTimestamp(t time.Time) string {
	sec := t.Unix()
	nsec := t.Nanosecond()
	if sec < 0 && nsec > 0 {
		// Before the epoch: -1.25 s is Unix() -2 plus 750000000 ns.
		return fmt.Sprintf("-%d.%09d", -(sec + 1), 1_000_000_000-nsec)
	}
	return fmt.Sprintf("%d.%09d", sec, nsec)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	neg := len(s) > 0 && s[0] == '-'
	if neg {
		s = s[1:]
	}
	secPart, fracPart := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			secPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: more than 9 fractional digits", s)
		}
		for len(fracPart) < 9 {
			fracPart += "0"
		}
		if nsec, err = strconv.ParseInt(fracPart, 10, 64); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	if neg {
		sec, nsec = -sec, -nsec
	}
	return time.Unix(sec, nsec), nil
}
