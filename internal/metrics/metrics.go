// Package metrics records one invocation's outcome and pushes it to a
// Prometheus Pushgateway, the usual sink for cron-style batch jobs.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements polls.Observer.
type Recorder struct {
	reg       *prometheus.Registry
	pollType  string
	succeeded bool

	attempts       *prometheus.CounterVec
	retryWaits     prometheus.Counter
	retryWaitSecs  prometheus.Counter
	runDuration    prometheus.Gauge
	lastSuccess    prometheus.Gauge
	lastRunSuccess prometheus.Gauge
}

func New(pollType string) *Recorder {
	r := &Recorder{
		reg:      prometheus.NewRegistry(),
		pollType: pollType,
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollbot_send_attempts_total",
				Help: "Poll send attempts by outcome (success/failure).",
			},
			[]string{"outcome"},
		),
		retryWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollbot_retry_waits_total",
			Help: "Waits taken between failed attempts.",
		}),
		retryWaitSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollbot_retry_wait_seconds_total",
			Help: "Seconds spent waiting between failed attempts.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pollbot_run_duration_seconds",
			Help: "Wall time of the last invocation.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pollbot_last_success_timestamp_seconds",
			Help: "Unix time of the last delivered poll.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pollbot_last_run_success",
			Help: "1 if the last invocation delivered its poll, 0 otherwise.",
		}),
	}
	// lastSuccess stays out of the registry; Push adds it only after a success
	r.reg.MustRegister(r.attempts, r.retryWaits, r.retryWaitSecs, r.runDuration, r.lastRunSuccess)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) ObserveAttempt(_ int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.attempts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveRetryWait(d time.Duration) {
	r.retryWaits.Inc()
	r.retryWaitSecs.Add(d.Seconds())
}

// ObserveRun records the end of an invocation that started at start.
func (r *Recorder) ObserveRun(start, end time.Time, err error) {
	r.runDuration.Set(end.Sub(start).Seconds())
	if err != nil {
		r.lastRunSuccess.Set(0)
		return
	}
	r.succeeded = true
	r.lastRunSuccess.Set(1)
	r.lastSuccess.Set(float64(end.Unix()))
}

// Push sends the registry to the gateway at url. Grouping by poll type
// keeps dinner and breakfast runs from overwriting each other. Metrics are
// added with POST, so a failed run leaves the previous
// pollbot_last_success_timestamp_seconds on the gateway untouched.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	p := push.New(url, job).
		Gatherer(r.reg).
		Grouping("poll_type", r.pollType)
	if r.succeeded {
		p = p.Collector(r.lastSuccess)
	}
	return p.AddContext(ctx)
}
