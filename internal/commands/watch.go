package commands

import (
	"context"

	"missionboard/internal/content"
	"missionboard/internal/models"
)

// watch prints notifications and invite changes until interrupted.
func (a *App) watch(ctx context.Context, args []string) error {
	if _, err := a.parse(a.flags("watch"), args, 0); err != nil {
		return err
	}
	current, err := a.requireSession()
	if err != nil {
		return err
	}

	a.printf("Watching as %s (Ctrl+C to stop)\n", content.Sanitize(current.DisplayName))

	unsubscribeNotifications := a.Notifications.Subscribe(a.printNotification)
	defer unsubscribeNotifications()
	a.connectNotifications()

	unsubscribeInvites := a.Registry.Subscribe(func(invites []models.Invite) {
		a.printf("Pending invites: %d\n", len(invites))
	})
	defer unsubscribeInvites()

	a.Inbox.Refresh()

	a.Poller.Start()
	defer a.Poller.Stop()

	<-ctx.Done()
	return nil
}

// connectNotifications opens the notification stream. Without it the
// invite poll still runs, so a failure is only reported.
func (a *App) connectNotifications() {
	if err := a.Notifications.Connect(); err != nil {
		a.printf("Live notifications unavailable: %v\n", err)
	}
}

func (a *App) printNotification(n models.Notification) {
	title := content.Sanitize(n.Title)
	if title == "" {
		title = string(n.Type)
	}
	a.printf("[%s] %s\n", title, content.Sanitize(n.Message))
}
