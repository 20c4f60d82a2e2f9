package invite

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"missionboard/internal/fanout"
	"missionboard/internal/models"
)

// Client is the part of the API the registry issues commands through.
type Client interface {
	MyInvites(ctx context.Context) ([]models.Invite, error)
	AcceptInvite(ctx context.Context, inviteID int64) error
	DeclineInvite(ctx context.Context, inviteID int64) error
	InviteToMission(ctx context.Context, missionID, userID int64) error
}

// Registry caches the pending invites of the current user. The cache
// only changes after the server confirmed a command.
type Registry struct {
	client  Client
	invites []models.Invite
	mu      sync.RWMutex

	changes fanout.Hub[[]models.Invite]
}

func NewRegistry(client Client) *Registry {
	return &Registry{client: client}
}

// FetchAll replaces the cache with the server's list. When fetches
// overlap, the last one to complete wins.
func (r *Registry) FetchAll(ctx context.Context) ([]models.Invite, error) {
	invites, err := r.client.MyInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch invites: %w", err)
	}
	if invites == nil {
		invites = []models.Invite{}
	}

	r.mu.Lock()
	r.invites = invites
	r.mu.Unlock()

	r.publish()
	return slices.Clone(invites), nil
}

func (r *Registry) Accept(ctx context.Context, inviteID int64) error {
	if err := r.client.AcceptInvite(ctx, inviteID); err != nil {
		return fmt.Errorf("accept invite %d: %w", inviteID, err)
	}
	slog.Info("invite accepted", "invite_id", inviteID)
	r.remove(inviteID)
	return nil
}

func (r *Registry) Decline(ctx context.Context, inviteID int64) error {
	if err := r.client.DeclineInvite(ctx, inviteID); err != nil {
		return fmt.Errorf("decline invite %d: %w", inviteID, err)
	}
	slog.Info("invite declined", "invite_id", inviteID)
	r.remove(inviteID)
	return nil
}

// Invite asks the server to invite userID into missionID. The cache
// holds invites addressed to us, so it is not touched.
func (r *Registry) Invite(ctx context.Context, missionID, userID int64) error {
	if err := r.client.InviteToMission(ctx, missionID, userID); err != nil {
		return fmt.Errorf("invite user %d to mission %d: %w", userID, missionID, err)
	}
	return nil
}

// Invites returns a copy of the cache.
func (r *Registry) Invites() []models.Invite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.invites)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invites)
}

// Subscribe registers fn for every change of the cache.
func (r *Registry) Subscribe(fn func([]models.Invite)) func() {
	return r.changes.Subscribe(fn)
}

func (r *Registry) remove(inviteID int64) {
	r.mu.Lock()
	before := len(r.invites)
	r.invites = slices.DeleteFunc(slices.Clone(r.invites), func(inv models.Invite) bool {
		return inv.ID == inviteID
	})
	changed := len(r.invites) != before
	r.mu.Unlock()

	if changed {
		r.publish()
	}
}

func (r *Registry) publish() {
	r.changes.Publish(r.Invites())
}
