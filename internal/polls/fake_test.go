package polls

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nikitkaralius/pollbot/internal/models"
)

var errBoom = errors.New("boom")

type sentPoll struct {
	Group models.Group
	Req   models.PollRequest
}

// fakeMessenger replays scripted results per call.
type fakeMessenger struct {
	mu         sync.Mutex
	groups     []models.Group
	groupsErrs []error
	sendErrs   []error
	groupCalls int
	sendCalls  int
	sent       []sentPoll
}

func cookGroups() []models.Group {
	return []models.Group{
		{ID: "1@s.whatsapp.net", Name: "C-502 Cook Talks", IsGroup: false},
		{ID: "2@g.us", Name: "c-502 cook talks", IsGroup: true},
		{ID: "3@g.us", Name: "C-502 Cook Talks", IsGroup: true, Participants: 12},
		{ID: "4@g.us", Name: "Family", IsGroup: true},
	}
}

func (f *fakeMessenger) Groups(context.Context) ([]models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.groupCalls
	f.groupCalls++
	if i < len(f.groupsErrs) && f.groupsErrs[i] != nil {
		return nil, f.groupsErrs[i]
	}
	return append([]models.Group(nil), f.groups...), nil
}

func (f *fakeMessenger) SendPoll(_ context.Context, g models.Group, req models.PollRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.sendCalls
	f.sendCalls++
	if i < len(f.sendErrs) && f.sendErrs[i] != nil {
		return "", f.sendErrs[i]
	}
	f.sent = append(f.sent, sentPoll{Group: g, Req: req})
	return "MSG" + string(rune('A'+i)), nil
}

type sleepRecorder struct {
	waits []time.Duration
	err   error
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

type recordingObserver struct {
	attempts []error
	waits    int
}

func (o *recordingObserver) ObserveAttempt(_ int, err error) { o.attempts = append(o.attempts, err) }
func (o *recordingObserver) ObserveRetryWait(time.Duration) { o.waits++ }
