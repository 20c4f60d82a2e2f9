package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"missionboard/internal/models"

	"github.com/c-pro/geche"
)

// ErrInFlight is returned when the same invite is already being accepted
// or declined.
var ErrInFlight = errors.New("invite is already being processed")

// Notifier raises a local notification.
type Notifier interface {
	ShowLocalNotification(n models.Notification)
}

// Inbox is the interactive front of the registry. It rejects a second
// command for an invite while the first one is still running and keeps
// the registry fresh when the server signals a change.
type Inbox struct {
	ctx        context.Context
	registry   *Registry
	notifier   Notifier
	processing *geche.Locker[int64, struct{}]

	lastCount int
	mu        sync.Mutex
}

func NewInbox(ctx context.Context, registry *Registry, notifier Notifier) *Inbox {
	return &Inbox{
		ctx:        ctx,
		registry:   registry,
		notifier:   notifier,
		processing: geche.NewLocker[int64, struct{}](geche.NewMapCache[int64, struct{}]()),
	}
}

func (i *Inbox) Accept(ctx context.Context, inviteID int64) error {
	if !i.begin(inviteID) {
		return ErrInFlight
	}
	defer i.end(inviteID)
	return i.registry.Accept(ctx, inviteID)
}

func (i *Inbox) Decline(ctx context.Context, inviteID int64) error {
	if !i.begin(inviteID) {
		return ErrInFlight
	}
	defer i.end(inviteID)
	return i.registry.Decline(ctx, inviteID)
}

// Processing reports whether a command for inviteID is running.
func (i *Inbox) Processing(inviteID int64) bool {
	tx := i.processing.RLock()
	defer tx.Unlock()
	_, err := tx.Get(inviteID)
	return err == nil
}

// Refresh re-fetches the registry and logs failures.
func (i *Inbox) Refresh() {
	if _, err := i.registry.FetchAll(i.ctx); err != nil {
		slog.Warn("failed to refresh invites", "error", err)
	}
}

// HandleNotification refreshes the invites on every server notification:
// any of them may mean an invite was created or withdrawn.
func (i *Inbox) HandleNotification(n models.Notification) {
	if n.Local {
		return
	}
	slog.Debug("refreshing invites after notification", "type", n.Type)
	i.Refresh()
}

// HandlePoll consumes an invite count payload from the poller. When the
// count moves the invites are re-fetched, and a new non-zero count raises
// a local notification.
func (i *Inbox) HandlePoll(payload json.RawMessage) {
	count, err := ParseCount(payload)
	if err != nil {
		slog.Debug("ignoring invite count payload", "error", err)
		return
	}

	i.mu.Lock()
	changed := count != i.lastCount
	i.lastCount = count
	i.mu.Unlock()

	if !changed && count == i.registry.Count() {
		return
	}
	i.Refresh()

	if changed && count > 0 && i.notifier != nil {
		i.notifier.ShowLocalNotification(models.Notification{
			Title:   "Invites",
			Message: fmt.Sprintf("You have %d pending invites", count),
			Type:    models.NotificationTypeInvite,
		})
	}
}

// ParseCount accepts either a bare number or an object with a count field.
func ParseCount(payload json.RawMessage) (int, error) {
	var count int
	if err := json.Unmarshal(payload, &count); err == nil {
		return count, nil
	}
	var wrapped struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return 0, fmt.Errorf("invalid invite count: %w", err)
	}
	if wrapped.Count == nil {
		return 0, errors.New("invalid invite count: missing count")
	}
	return *wrapped.Count, nil
}

func (i *Inbox) begin(inviteID int64) bool {
	tx := i.processing.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(inviteID); err == nil {
		return false
	}
	tx.Set(inviteID, struct{}{})
	return true
}

func (i *Inbox) end(inviteID int64) {
	tx := i.processing.Lock()
	defer tx.Unlock()
	_ = tx.Del(inviteID)
}
