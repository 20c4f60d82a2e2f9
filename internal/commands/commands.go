package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"missionboard/internal/api"
	"missionboard/internal/chat"
	"missionboard/internal/invite"
	"missionboard/internal/models"
	"missionboard/internal/notify"
	"missionboard/internal/poll"
	"missionboard/internal/session"

	"github.com/spf13/pflag"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("invalid usage")

// App wires the client components to the command line.
type App struct {
	API           *api.Client
	Sessions      *session.Store
	Registry      *invite.Registry
	Inbox         *invite.Inbox
	Room          *chat.Room
	Notifications *notify.Channel
	Poller        *poll.Poller

	In  io.Reader
	Out io.Writer
	Err io.Writer

	lines *bufio.Scanner
	outMu sync.Mutex
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
	// streaming commands keep running until interrupted and need the
	// notification stream.
	streaming bool
}

var registry map[string]command

func init() {
	registry = map[string]command{
		"login":       {usage: "login <username> [--password-file path]", run: (*App).login},
		"register":    {usage: "register <username> --display-name name [--password-file path]", run: (*App).register},
		"logout":      {usage: "logout", run: (*App).logout},
		"whoami":      {usage: "whoami", run: (*App).whoami},
		"avatar":      {usage: "avatar <image file>", run: (*App).avatar},
		"missions":    {usage: "missions [--name text] [--status Open|InProgress|Completed|Failed]", run: (*App).missions},
		"mission":     {usage: "mission <id>", run: (*App).mission},
		"my-missions": {usage: "my-missions", run: (*App).myMissions},
		"create":      {usage: "create --name text [--description text] [--category text] [--max-crew n]", run: (*App).create},
		"join":        {usage: "join <mission id>", run: (*App).join},
		"leave":       {usage: "leave <mission id>", run: (*App).leave},
		"start":       {usage: "start <mission id>", run: (*App).start},
		"complete":    {usage: "complete <mission id>", run: (*App).complete},
		"fail":        {usage: "fail <mission id>", run: (*App).fail},
		"crew":        {usage: "crew <mission id>", run: (*App).crewList},
		"kick":        {usage: "kick <mission id> <member id>", run: (*App).kick},
		"leaderboard": {usage: "leaderboard", run: (*App).leaderboard},
		"invites":     {usage: "invites", run: (*App).invites},
		"accept":      {usage: "accept <invite id>", run: (*App).accept},
		"decline":     {usage: "decline <invite id>", run: (*App).decline},
		"invite":      {usage: "invite <mission id> <user id>", run: (*App).invite},
		"chat":        {usage: "chat <mission id> [--filter all|chat|activity]", run: (*App).chat, streaming: true},
		"watch":       {usage: "watch", run: (*App).watch, streaming: true},
	}
}

// Streaming reports whether the named command runs until interrupted.
// An empty name selects watch.
func Streaming(name string) bool {
	if name == "" {
		name = "watch"
	}
	return registry[name].streaming
}

// Run executes the command named by args[0]; without arguments it watches
// notifications and invites.
func (a *App) Run(ctx context.Context, args []string) error {
	name := "watch"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	if name == "help" || name == "-h" || name == "--help" {
		a.Usage()
		return nil
	}

	cmd, ok := registry[name]
	if !ok {
		a.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	return cmd.run(a, ctx, args)
}

func (a *App) Usage() {
	_, _ = fmt.Fprintln(a.Err, "Usage: missionboard [flags] <command> [args]")
	_, _ = fmt.Fprintln(a.Err, "\nCommands:")
	for _, name := range []string{
		"login", "register", "logout", "whoami", "avatar",
		"missions", "mission", "my-missions", "create", "join", "leave", "start", "complete", "fail", "crew", "kick", "leaderboard",
		"invites", "accept", "decline", "invite",
		"chat", "watch",
	} {
		_, _ = fmt.Fprintf(a.Err, "  %s\n", registry[name].usage)
	}
}

func (a *App) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.Err)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(a.Err, "Usage: missionboard %s\n", registry[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses flags and checks the number of positional arguments.
func (a *App) parse(fs *pflag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != positional {
		fs.Usage()
		return nil, fmt.Errorf("%w: %s expects %d argument(s)", ErrUsage, fs.Name(), positional)
	}
	return fs.Args(), nil
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id %q", ErrUsage, kind, s)
	}
	return id, nil
}

func (a *App) requireSession() (models.Session, error) {
	current, ok := a.Sessions.Current()
	if !ok {
		return models.Session{}, fmt.Errorf("%w: run 'missionboard login' first", models.ErrNoSession)
	}
	return current, nil
}

// readLine reads one line of input, without its line ending.
func (a *App) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewScanner(a.In)
	}
	if !a.lines.Scan() {
		if err := a.lines.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(a.lines.Text(), "\r"), nil
}

// printf is safe to call from subscriber callbacks.
func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	_, _ = fmt.Fprintf(a.Out, format, args...)
}

// stdinFD returns the descriptor of In when it is a file.
func (a *App) stdinFD() (int, bool) {
	f, ok := a.In.(*os.File)
	if !ok {
		return 0, false
	}
	return int(f.Fd()), true
}
