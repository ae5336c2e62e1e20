package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gobridge/pkg/sample"
)

func samplesAt(start time.Time, step time.Duration, volts ...float64) []sample.Sample {
	out := make([]sample.Sample, len(volts))
	for i, v := range volts {
		out[i] = sample.Sample{Timestamp: start.Add(time.Duration(i) * step), Voltage: v}
	}
	return out
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Unix(1700000000, 0), "1700000000.000000000"},
		{time.Unix(1700000000, 1), "1700000000.000000001"},
		{time.Unix(1700000000, 123456789), "1700000000.123456789"},
		{time.Unix(0, 0), "0.000000000"},
		{time.Unix(-2, 750000000), "-1.250000000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatTimestamp(tt.t)
			assert.Equal(t, tt.want, got)

			back, err := ParseTimestamp(got)
			require.NoError(t, err)
			assert.True(t, tt.t.Equal(back), "%v != %v", tt.t, back)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("12.5")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(12, 500000000), ts)

	ts, err = ParseTimestamp("12")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(12, 0), ts)

	for _, bad := range []string{"", "abc", "1.x", "1.1234567890"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestCSV_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := CreateCSV(path, 2)
	require.NoError(t, err)

	in := samplesAt(time.Unix(1700000000, 0), time.Millisecond, 0, 7.275957618e-05, -7.275957618e-05, 0.15625, -0.15625)
	for _, smp := range in {
		require.NoError(t, s.Append(smp))
	}
	assert.Equal(t, 5, s.Count())

	// Rows are on disk before Close.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "timestamp,voltage", lines[0])
	assert.Equal(t, "1700000000.000000000,0", lines[1])
	assert.Equal(t, "1700000000.001000000,7.275957618e-05", lines[2])
	assert.Equal(t, "1700000000.004000000,-0.15625", lines[5])

	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	out, err := ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.True(t, in[i].Timestamp.Equal(out[i].Timestamp))
		assert.Equal(t, in[i].Voltage, out[i].Voltage)
	}
}

func TestCSV_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old content\n1,2\n"), 0644))

	s, err := CreateCSV(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,voltage\n", string(data))
}

func TestCSV_RejectsOutOfOrder(t *testing.T) {
	s, err := CreateCSV(filepath.Join(t.TempDir(), "out.csv"), 0)
	require.NoError(t, err)
	defer s.Close()

	ts := time.Unix(100, 0)
	require.NoError(t, s.Append(sample.Sample{Timestamp: ts}))

	for _, bad := range []time.Time{ts, ts.Add(-time.Nanosecond)} {
		err = s.Append(sample.Sample{Timestamp: bad})
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "append", se.Op)
		assert.ErrorIs(t, err, ErrOutOfOrder)
	}
	assert.Equal(t, 1, s.Count())
}

func TestCSV_Close(t *testing.T) {
	s, err := CreateCSV(filepath.Join(t.TempDir(), "out.csv"), 0)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	err = s.Append(sample.Sample{Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCreateCSV_BadPath(t *testing.T) {
	_, err := CreateCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), 0)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open", se.Op)
}

func TestReadCSV_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"bad header":  "time,value\n",
		"bad stamp":   "timestamp,voltage\nnow,1\n",
		"bad voltage": "timestamp,voltage\n1.0,volts\n",
		"short row":   "timestamp,voltage\n1.0\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(KindCSV, filepath.Join(dir, "a.csv"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, s)
	require.NoError(t, s.Close())

	s, err = Open("BOLT", filepath.Join(dir, "a.db"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, s)
	require.NoError(t, s.Close())

	_, err = Open("parquet", filepath.Join(dir, "a.parquet"), Options{})
	var se *Error
	assert.ErrorAs(t, err, &se)
}
