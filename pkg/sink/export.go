package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.etcd.io/bbolt"

	"github.com/itohio/gobridge/pkg/sample"
)

// ForEach calls fn for every sample of the bolt store at path, oldest first.
func ForEach(path string, fn func(sample.Sample) error) error {
	db, err := bbolt.Open(path, 0400, &bbolt.Options{ReadOnly: true, Timeout: openTimeout})
	if err != nil {
		return &Error{Op: "open", Err: err}
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketSamples))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", BucketSamples)
		}
		return b.ForEach(func(k, v []byte) error {
			ts, err := DecodeKey(k)
			if err != nil {
				return err
			}
			volts, err := DecodeValue(v)
			if err != nil {
				return err
			}
			return fn(sample.Sample{Timestamp: ts, Voltage: volts})
		})
	})
	return wrap("read", err)
}

// Meta returns the meta bucket of the bolt store at path.
func Meta(path string) (map[string]string, error) {
	db, err := bbolt.Open(path, 0400, &bbolt.Options{ReadOnly: true, Timeout: openTimeout})
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	defer db.Close()

	meta := make(map[string]string)
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketMeta))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			meta[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	return meta, nil
}

// Export writes the bolt store at path to w in the CSV store format and
// returns the number of rows written.
func Export(path string, w io.Writer) (int, error) {
	out := csv.NewWriter(w)
	if err := out.Write(Header); err != nil {
		return 0, &Error{Op: "export", Err: err}
	}
	n := 0
	err := ForEach(path, func(s sample.Sample) error {
		if err := out.Write(Record(s)); err != nil {
			return &Error{Op: "export", Err: err}
		}
		n++
		return nil
	})
	out.Flush()
	if err != nil {
		return n, err
	}
	if err := out.Error(); err != nil {
		return n, &Error{Op: "export", Err: err}
	}
	return n, nil
}

// ReadCSV loads a CSV store written by CSV.
func ReadCSV(r io.Reader) ([]sample.Sample, error) {
	in := csv.NewReader(r)
	in.FieldsPerRecord = len(Header)
	records, err := in.ReadAll()
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	if len(records) == 0 {
		return nil, &Error{Op: "read", Err: io.ErrUnexpectedEOF}
	}
	if records[0][0] != Header[0] || records[0][1] != Header[1] {
		return nil, &Error{Op: "read", Err: fmt.Errorf("unexpected header %v", records[0])}
	}
	samples := make([]sample.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return nil, &Error{Op: "read", Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, &Error{Op: "read", Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		samples = append(samples, sample.Sample{Timestamp: ts, Voltage: v})
	}
	return samples, nil
}
