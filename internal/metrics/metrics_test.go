package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New("dinner")
	r.ObserveAttempt(1, errors.New("x"))
	r.ObserveRetryWait(5 * time.Second)
	r.ObserveAttempt(2, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retryWaits))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.retryWaitSecs))

	start := time.Unix(1000, 0)
	r.ObserveRun(start, start.Add(7*time.Second), nil)
	assert.Equal(t, 7.0, testutil.ToFloat64(r.runDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lastRunSuccess))
	assert.Equal(t, 1007.0, testutil.ToFloat64(r.lastSuccess))

	r.ObserveRun(start, start.Add(time.Second), errors.New("failed"))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastRunSuccess))
	assert.Equal(t, 1007.0, testutil.ToFloat64(r.lastSuccess), "failure keeps the last success time")
}

type pushRequest struct {
	method string
	path   string
	body   string
}

func gateway(t *testing.T) (*httptest.Server, *[]pushRequest) {
	t.Helper()
	var got []pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		got = append(got, pushRequest{method: req.Method, path: req.URL.Path, body: string(b)})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPushAfterSuccessfulRun(t *testing.T) {
	srv, got := gateway(t)

	r := New("breakfast")
	r.ObserveAttempt(1, errors.New("x"))
	r.ObserveRetryWait(5 * time.Second)
	r.ObserveAttempt(2, nil)
	start := time.Now()
	r.ObserveRun(start, start.Add(6*time.Second), nil)
	require.NoError(t, r.Push(context.Background(), srv.URL, "pollbot"))

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/metrics/job/pollbot/poll_type/breakfast", req.path)
	assert.Contains(t, req.body, "pollbot_send_attempts_total")
	assert.Contains(t, req.body, "pollbot_last_run_success")
	assert.Contains(t, req.body, "pollbot_last_success_timestamp_seconds")
}

func TestPushAfterFailedRunKeepsLastSuccess(t *testing.T) {
	srv, got := gateway(t)

	r := New("dinner")
	for i := 1; i <= 3; i++ {
		r.ObserveAttempt(i, errors.New("boom"))
	}
	now := time.Now()
	r.ObserveRun(now, now, errors.New("boom"))
	require.NoError(t, r.Push(context.Background(), srv.URL, "pollbot"))

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, http.MethodPost, req.method, "PUT would drop the previous success time from the group")
	assert.Equal(t, "/metrics/job/pollbot/poll_type/dinner", req.path)
	assert.Contains(t, req.body, "pollbot_send_attempts_total")
	assert.NotContains(t, req.body, "pollbot_last_success_timestamp_seconds")
}

func TestPushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New("dinner")
	r.ObserveAttempt(1, nil)
	require.Error(t, r.Push(context.Background(), srv.URL, "pollbot"))
}
