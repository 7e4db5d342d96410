package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPollType = errors.New("invalid poll type")
	ErrInvalidOptions  = errors.New("poll must have exactly two options")
)

// PollType selects which fixed poll an invocation sends.
type PollType string

const (
	PollDinner    PollType = "dinner"
	PollBreakfast PollType = "breakfast"
)

// PollTypes lists every accepted value in CLI order.
var PollTypes = []PollType{PollDinner, PollBreakfast}

func ParsePollType(s string) (PollType, error) {
	for _, t := range PollTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidPollType, s, strings.Join(PollTypeNames(), ", "))
}

func PollTypeNames() []string {
	names := make([]string, len(PollTypes))
	for i, t := range PollTypes {
		names[i] = string(t)
	}
	return names
}

// PollRequest is the question and its two answer options.
type PollRequest struct {
	Question string
	Options  []string
}

func NewPollRequest(question string, options ...string) (PollRequest, error) {
	if len(options) != 2 {
		return PollRequest{}, fmt.Errorf("%w: got %d", ErrInvalidOptions, len(options))
	}
	opts := make([]string, len(options))
	copy(opts, options)
	return PollRequest{Question: question, Options: opts}, nil
}

// DinnerPoll and BreakfastPoll are the only two polls the bot ever sends.
func DinnerPoll() PollRequest { return yesNoPoll("Dinner today?") }

func BreakfastPoll() PollRequest { return yesNoPoll("Breakfast tomorrow?") }

func yesNoPoll(question string) PollRequest {
	req, err := NewPollRequest(question, "Yes", "No")
	if err != nil {
		panic(err)
	}
	return req
}

// Request returns the poll for the given type.
func (t PollType) Request() (PollRequest, error) {
	switch t {
	case PollDinner:
		return DinnerPoll(), nil
	case PollBreakfast:
		return BreakfastPoll(), nil
	}
	return PollRequest{}, fmt.Errorf("%w: %q", ErrInvalidPollType, string(t))
}

// SendResult describes a delivered poll.
type SendResult struct {
	MessageID string
	GroupID   string
	Attempts  int
	SentAt    time.Time
}
