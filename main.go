package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"missionboard/internal/api"
	"missionboard/internal/chat"
	"missionboard/internal/commands"
	"missionboard/internal/config"
	"missionboard/internal/invite"
	"missionboard/internal/notify"
	"missionboard/internal/poll"
	"missionboard/internal/session"
	"missionboard/internal/storage"
	"missionboard/internal/ws"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("missionboard", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	envFile := fs.String("env-file", ".env", "file with environment variables to load")
	baseURL := fs.String("url", "", "mission board server (overrides MISSIONBOARD_URL)")
	dbFile := fs.String("db", "", "session database file (overrides MISSIONBOARD_DB)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", commands.ErrUsage, err)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *dbFile != "" {
		cfg.DBFile = *dbFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	sessions := session.New(bbStorage)

	client, err := api.New(api.Config{BaseURL: cfg.BaseURL, Timeout: cfg.HTTPTimeout}, sessions)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	chatChannel := ws.NewChannel(gCtx, ws.ChannelConfig{URL: client.ChatURL, Sessions: sessions})
	notifications := notify.NewChannel(gCtx, notify.Config{URL: client.NotificationsURL, Tokens: sessions})
	poller := poll.New(gCtx, poll.Config{Interval: cfg.PollInterval, Fetch: client.InviteCount})
	registry := invite.NewRegistry(client)
	inbox := invite.NewInbox(gCtx, registry, notifications)
	room := chat.New(chat.Config{Channel: chatChannel, History: client, MaxRecords: cfg.ChatHistoryLimit})

	notifications.Subscribe(inbox.HandleNotification)
	poller.Subscribe(inbox.HandlePoll)

	if err := sessions.Load(); err != nil {
		slog.Error("failed to restore session, continuing logged out", "error", err)
	}

	// Streaming commands open the notification stream themselves once
	// they print; later identity changes reconnect or close it.
	var command string
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}
	if commands.Streaming(command) {
		sessions.Subscribe(notifications.HandleSessionChange)
	}

	app := &commands.App{
		API:           client,
		Sessions:      sessions,
		Registry:      registry,
		Inbox:         inbox,
		Room:          room,
		Notifications: notifications,
		Poller:        poller,
		In:            stdin,
		Out:           stdout,
		Err:           stderr,
	}

	g.Go(func() error {
		defer cancel()
		return app.Run(gCtx, fs.Args())
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Debug("shutting down")
		poller.Stop()
		notifications.Disconnect()
		chatChannel.Disconnect()
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, commands.ErrUsage):
		log.Println(err)
		os.Exit(2)
	default:
		log.Fatalf("Application error: %v", err)
	}
}
