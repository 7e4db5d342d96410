package polls

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollbot/internal/models"
)

// Messenger is the part of a platform client the poll flow needs.
type Messenger interface {
	// Groups returns every chat visible to the account. Called once per
	// resolution; implementations must not cache.
	Groups(ctx context.Context) ([]models.Group, error)
	// SendPoll delivers req to group and returns the platform message id.
	SendPoll(ctx context.Context, group models.Group, req models.PollRequest) (string, error)
}

type Resolver struct {
	messenger Messenger
	target    string
}

func NewResolver(m Messenger, target string) *Resolver {
	return &Resolver{messenger: m, target: target}
}

func (r *Resolver) Target() string { return r.target }

// FindTargetGroup fetches the chat list and returns the group whose name
// equals the target exactly.
func (r *Resolver) FindTargetGroup(ctx context.Context) (models.Group, error) {
	chats, err := r.messenger.Groups(ctx)
	if err != nil {
		return models.Group{}, fmt.Errorf("list chats: %w", err)
	}
	if g, ok := findGroup(chats, r.target); ok {
		return g, nil
	}
	return models.Group{}, &GroupNotFoundError{Name: r.target}
}

func findGroup(chats []models.Group, name string) (models.Group, bool) {
	for _, c := range chats {
		if c.IsGroup && c.Name == name {
			return c, true
		}
	}
	return models.Group{}, false
}

// Report summarises the chat list once the client is ready.
type Report struct {
	TotalChats      int
	Target          *models.Group
	AvailableGroups []string
}

func (r *Resolver) Describe(ctx context.Context) (Report, error) {
	chats, err := r.messenger.Groups(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list chats: %w", err)
	}
	rep := Report{TotalChats: len(chats)}
	if g, ok := findGroup(chats, r.target); ok {
		rep.Target = &g
		return rep, nil
	}
	for _, c := range chats {
		if c.IsGroup {
			rep.AvailableGroups = append(rep.AvailableGroups, c.Name)
		}
	}
	return rep, nil
}

func (rep Report) Log(log zerolog.Logger, target string) {
	log.Info().Int("total_chats", rep.TotalChats).Msg("chat list loaded")
	if rep.Target != nil {
		log.Info().
			Str("group", rep.Target.Name).
			Str("group_id", rep.Target.ID).
			Int("participants", rep.Target.Participants).
			Msg("target group found")
		return
	}
	log.Warn().Str("group", target).Strs("available_groups", rep.AvailableGroups).Msg("target group not found")
}
