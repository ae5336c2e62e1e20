package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gobridge/pkg/acquire"
	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/sample"
)

func newTestServer(stats acquire.Stats, samples ...sample.Sample) *Server {
	w := sample.NewWindow(time.Minute)
	for _, s := range samples {
		w.Add(s)
	}
	info := Info{
		Converter: ads1263.DefaultConfig(),
		Channel:   ads1263.DefaultChannel(),
		Output:    "measurements.csv",
	}
	return New("", info, func() acquire.Stats { return stats }, w, time.Minute)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(
		acquire.Stats{State: acquire.Sampling, Samples: 2, ReadErrors: 1, Degraded: true},
		sample.Sample{Timestamp: time.Unix(10, 0), Voltage: 0.001},
		sample.Sample{Timestamp: time.Unix(11, 500), Voltage: 0.002},
	)

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sampling", body["state"])
	assert.Equal(t, float64(2), body["samples"])
	assert.Equal(t, float64(1), body["read_errors"])
	assert.Equal(t, true, body["degraded"])
	assert.Equal(t, "AIN0+/AIN1-", body["channel"])
	assert.Equal(t, "measurements.csv", body["output"])

	conv := body["converter"].(map[string]interface{})
	assert.Equal(t, "400", conv["rate"])
	assert.Equal(t, "32", conv["gain"])
	assert.Equal(t, "sinc4", conv["filter"])

	latest := body["latest"].(map[string]interface{})
	assert.Equal(t, "11.000000500", latest["t"])
	assert.Equal(t, 0.002, latest["v"])
}

func TestStatus_NoSamples(t *testing.T) {
	s := newTestServer(acquire.Stats{State: acquire.WaitingForReady})

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Latest)
	assert.Equal(t, acquire.WaitingForReady, resp.State)
	assert.Equal(t, ads1263.DefaultConfig(), resp.Converter)
}

func TestSamples(t *testing.T) {
	var samples []sample.Sample
	for i := 0; i < 100; i++ {
		samples = append(samples, sample.Sample{Timestamp: time.Unix(int64(i), 0), Voltage: float64(i)})
	}
	s := newTestServer(acquire.Stats{}, samples...)

	rec := get(t, s.Handler(), "/samples?max=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SamplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Count)
	assert.Len(t, resp.Samples, 10)
	assert.Equal(t, "1m0s", resp.Window)
	assert.Equal(t, float64(99), resp.Samples[9].Voltage, "newest sample kept")

	rec = get(t, s.Handler(), "/samples")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.Count, "window holds one minute of samples")
}

func TestSamples_BadMax(t *testing.T) {
	s := newTestServer(acquire.Stats{})

	for _, q := range []string{"/samples?max=abc", "/samples?max=-1"} {
		rec := get(t, s.Handler(), q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(acquire.Stats{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	w := sample.NewWindow(time.Minute)
	s := New(addr, Info{}, func() acquire.Stats { return acquire.Stats{} }, w, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
