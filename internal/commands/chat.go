package commands

import (
	"context"
	"strings"
	"sync"

	"missionboard/internal/chat"
	"missionboard/internal/content"
	"missionboard/internal/models"
)

func (a *App) chat(ctx context.Context, args []string) error {
	fs := a.flags("chat")
	filterFlag := fs.String("filter", string(chat.FilterAll), "show all, chat or activity messages")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	missionID, err := parseID("mission", rest[0])
	if err != nil {
		return err
	}
	filter, err := chat.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	// Live messages are printed once the history is on screen; earlier
	// ones are part of the history printout.
	var mu sync.Mutex
	ready := false
	unsubscribe := a.Room.Subscribe(func(m models.ChatMessage) {
		mu.Lock()
		defer mu.Unlock()
		if ready && filter.Match(m) {
			a.printMessage(m)
		}
	})
	defer unsubscribe()

	if err := a.Room.Open(ctx, missionID); err != nil {
		return err
	}
	defer a.Room.Close()

	mu.Lock()
	a.printf("Mission #%d chat (/filter all|chat|activity, /quit)\n", missionID)
	for _, m := range a.Room.Messages(filter) {
		a.printMessage(m)
	}
	ready = true
	mu.Unlock()

	unsubscribeNotifications := a.Notifications.Subscribe(a.printNotification)
	defer unsubscribeNotifications()
	a.connectNotifications()

	lines := a.inputLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch {
			case line == "/quit":
				return nil
			case strings.HasPrefix(line, "/filter"):
				f, err := chat.ParseFilter(strings.TrimSpace(strings.TrimPrefix(line, "/filter")))
				if err != nil {
					a.printf("%v\n", err)
					continue
				}
				mu.Lock()
				filter = f
				for _, m := range a.Room.Messages(filter) {
					a.printMessage(m)
				}
				mu.Unlock()
			default:
				a.Room.Send(line)
			}
		}
	}
}

// inputLines feeds input lines to a channel until EOF or cancellation.
func (a *App) inputLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := a.readLine()
			if err != nil {
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (a *App) printMessage(m models.ChatMessage) {
	stamp := "--:--"
	if ts, err := m.Time(); err == nil {
		stamp = ts.Local().Format("15:04")
	}

	if m.Type == models.MessageTypeSystem {
		a.printf("[%s] * %s\n", stamp, content.Sanitize(m.Content))
		return
	}

	name := content.Sanitize(m.UserDisplayName)
	if name == "" {
		name = "unknown"
	}
	a.printf("[%s] %s: %s\n", stamp, name, content.Sanitize(m.Content))
}
