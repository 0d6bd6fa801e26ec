package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport plays back a fixed sequence of responses/errors.
type scriptedTransport struct {
	outcomes []outcome
	calls    int
}

type outcome struct {
	status     int
	retryAfter string
	err        error
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	idx := s.calls
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	s.calls++

	o := s.outcomes[idx]
	if o.err != nil {
		return nil, o.err
	}

	resp := &http.Response{
		StatusCode: o.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("body")),
		Request:    req,
	}
	if o.retryAfter != "" {
		resp.Header.Set("Retry-After", o.retryAfter)
	}
	return resp, nil
}

// newTestTransport wires a scripted base transport and captures backoff waits
// instead of sleeping.
func newTestTransport(base *scriptedTransport, maxAttempts int) (*retryTransport, *[]time.Duration) {
	rt := NewRetryTransport(base, Options{MaxAttempts: maxAttempts}).(*retryTransport)
	waits := &[]time.Duration{}
	rt.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return rt, waits
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), "POST", "https://rpc.example.com", strings.NewReader(`{"method":"getHealth"}`))
	require.NoError(t, err)
	return req
}

func TestRoundTrip_SuccessFirstAttempt(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{{status: 200}}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, base.calls)
	assert.Empty(t, *waits)
}

func TestRoundTrip_RetriesOn429And503(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{
		{status: 429},
		{status: 503},
		{status: 200},
	}}
	rt, _ := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, base.calls)
}

func TestRoundTrip_NoRetryOnClientError(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{{status: 400}}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, 1, base.calls)
	assert.Empty(t, *waits)
}

func TestRoundTrip_ExponentialBackoffSchedule(t *testing.T) {
	// Four retryable failures then success: waits must follow 2^attempt seconds.
	base := &scriptedTransport{outcomes: []outcome{
		{status: 503},
		{status: 503},
		{status: 503},
		{status: 503},
		{status: 200},
	}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}, *waits)

	// Monotonically non-decreasing by construction
	for i := 1; i < len(*waits); i++ {
		assert.GreaterOrEqual(t, (*waits)[i], (*waits)[i-1])
	}
}

func TestRoundTrip_ExhaustsAttemptsAndReturnsLastResponse(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{{status: 429}}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, 5, base.calls)
	assert.Len(t, *waits, 4) // no wait after the final attempt
}

func TestRoundTrip_TransportErrorRetriedThenSurfaced(t *testing.T) {
	connErr := errors.New("connection reset by peer")
	base := &scriptedTransport{outcomes: []outcome{{err: connErr}}}
	rt, _ := newTestTransport(base, 3)

	resp, err := rt.RoundTrip(newRequest(t))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, connErr)
	assert.Equal(t, 3, base.calls)
}

func TestRoundTrip_HonorsNumericRetryAfter(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{
		{status: 429, retryAfter: "2"},
		{status: 200},
	}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, *waits, 1)
	assert.Equal(t, 2*time.Second, (*waits)[0])
}

func TestRoundTrip_HonorsDateRetryAfter(t *testing.T) {
	future := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)
	base := &scriptedTransport{outcomes: []outcome{
		{status: 429, retryAfter: future},
		{status: 200},
	}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, *waits, 1)
	assert.InDelta(t, (3 * time.Second).Seconds(), (*waits)[0].Seconds(), 1.5)
}

func TestRoundTrip_PastDateRetryAfterFlooredAtZero(t *testing.T) {
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	base := &scriptedTransport{outcomes: []outcome{
		{status: 429, retryAfter: past},
		{status: 200},
	}}
	rt, waits := newTestTransport(base, 5)

	resp, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, *waits, 1)
	assert.Equal(t, time.Duration(0), (*waits)[0])
}

func TestRoundTrip_BodyReplayedOnRetry(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rt := NewRetryTransport(http.DefaultTransport, Options{MaxAttempts: 3}).(*retryTransport)
	rt.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	client := &http.Client{Transport: rt}

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
}

func TestRoundTrip_CancelledContextStopsBackoff(t *testing.T) {
	base := &scriptedTransport{outcomes: []outcome{{status: 429}}}
	rt := NewRetryTransport(base, Options{MaxAttempts: 5}).(*retryTransport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", "https://rpc.example.com", nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryAfterDelay(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{name: "empty", value: "", ok: false},
		{name: "numeric seconds", value: "2", want: 2 * time.Second, ok: true},
		{name: "fractional seconds", value: "0.5", want: 500 * time.Millisecond, ok: true},
		{name: "negative rejected", value: "-1", ok: false},
		{name: "garbage rejected", value: "soon", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := retryAfterDelay(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
