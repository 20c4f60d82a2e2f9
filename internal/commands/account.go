package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"missionboard/internal/content"
	"missionboard/internal/models"

	"golang.org/x/term"
)

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	passwordFile := fs.String("password-file", "", "read the password from a file (- for stdin)")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}

	username := rest[0]
	if err := content.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	password, err := a.readPassword(*passwordFile)
	if err != nil {
		return err
	}

	req := models.LoginRequest{Username: username, Password: password}
	if err := a.Sessions.Login(ctx, a.API, req); err != nil {
		return err
	}

	current, _ := a.Sessions.Current()
	a.printf("Logged in as %s\n", content.Sanitize(current.DisplayName))
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	displayName := fs.String("display-name", "", "name shown to other brawlers")
	passwordFile := fs.String("password-file", "", "read the password from a file (- for stdin)")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}

	username := rest[0]
	if err := content.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(*displayName) == "" {
		*displayName = username
	}

	password, err := a.readPassword(*passwordFile)
	if err != nil {
		return err
	}

	req := models.RegisterRequest{Username: username, Password: password, DisplayName: *displayName}
	if err := a.Sessions.Register(ctx, a.API, req); err != nil {
		return err
	}

	a.printf("Registered and logged in as %s\n", content.Sanitize(*displayName))
	return nil
}

func (a *App) logout(_ context.Context, args []string) error {
	if _, err := a.parse(a.flags("logout"), args, 0); err != nil {
		return err
	}
	if err := a.Sessions.Logout(); err != nil {
		return err
	}
	a.printf("Logged out\n")
	return nil
}

func (a *App) whoami(_ context.Context, args []string) error {
	if _, err := a.parse(a.flags("whoami"), args, 0); err != nil {
		return err
	}
	current, err := a.requireSession()
	if err != nil {
		return err
	}

	a.printf("Name:      %s\n", content.Sanitize(current.DisplayName))
	if id, ok := current.UserID(); ok {
		a.printf("User ID:   %d\n", id)
	}
	a.printf("Level:     %d (%d XP)\n", current.Level(), current.XP())
	a.printf("Missions:  %d joined, %d succeeded\n", current.MissionJoinCount, current.MissionSuccessCount)
	if current.AvatarURL != "" {
		a.printf("Avatar:    %s\n", current.AvatarURL)
	}
	return nil
}

func (a *App) avatar(ctx context.Context, args []string) error {
	rest, err := a.parse(a.flags("avatar"), args, 1)
	if err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("failed to read avatar: %w", err)
	}

	url, err := a.API.UploadAvatar(ctx, data)
	if err != nil {
		return err
	}
	if err := a.Sessions.SetAvatarURL(url); err != nil {
		return err
	}

	a.printf("Avatar updated: %s\n", url)
	return nil
}

// readPassword reads the password from passwordFile, from the terminal
// with echo disabled, or from the first line of piped input.
func (a *App) readPassword(passwordFile string) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	if fd, ok := a.stdinFD(); ok && term.IsTerminal(fd) {
		_, _ = fmt.Fprint(a.Err, "Password: ")
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(a.Err)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	password, err := a.readLine()
	if errors.Is(err, io.EOF) {
		return "", errors.New("no password given (use --password-file or pipe it on stdin)")
	}
	return password, err
}
