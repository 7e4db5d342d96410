package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/metrics"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/polls"
)

type flakyMessenger struct {
	failures int
	sends    int
}

func (m *flakyMessenger) Groups(context.Context) ([]models.Group, error) {
	return []models.Group{{ID: "1@g.us", Name: "C-502 Cook Talks", IsGroup: true}}, nil
}

func (m *flakyMessenger) SendPoll(context.Context, models.Group, models.PollRequest) (string, error) {
	m.sends++
	if m.sends <= m.failures {
		return "", errors.New("network")
	}
	return "MSG", nil
}

func TestPushMetricsAfterRetriedSend(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, req.Method+" "+req.URL.Path+" "+string(b))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recorder := metrics.New("dinner")
	noSleep := func(context.Context, time.Duration) error { return nil }
	sender := polls.NewSender(&flakyMessenger{failures: 1}, polls.DefaultConfig(), zerolog.Nop(),
		polls.WithObserver(recorder), polls.WithSleep(noSleep))

	start := time.Now()
	_, err := sender.SendDinnerPoll(context.Background())
	require.NoError(t, err)
	recorder.ObserveRun(start, time.Now(), err)

	pushMetrics(zerolog.Nop(), recorder, config.MetricsConfig{PushgatewayURL: srv.URL, Job: "pollbot"})

	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "POST /metrics/job/pollbot/poll_type/dinner")
	assert.Contains(t, bodies[0], "pollbot_send_attempts_total")
	assert.Contains(t, bodies[0], "pollbot_retry_waits_total")
	assert.Contains(t, bodies[0], "pollbot_last_success_timestamp_seconds")
}
