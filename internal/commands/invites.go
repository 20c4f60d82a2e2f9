package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"missionboard/internal/content"
	"missionboard/internal/models"
)

func (a *App) invites(ctx context.Context, args []string) error {
	if _, err := a.parse(a.flags("invites"), args, 0); err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	invites, err := a.Registry.FetchAll(ctx)
	if err != nil {
		return err
	}
	a.printInvites(invites)
	return nil
}

func (a *App) accept(ctx context.Context, args []string) error {
	id, err := a.inviteCommand("accept", args)
	if err != nil {
		return err
	}
	if err := a.Inbox.Accept(ctx, id); err != nil {
		return err
	}
	a.printf("Invite #%d accepted\n", id)
	return nil
}

func (a *App) decline(ctx context.Context, args []string) error {
	id, err := a.inviteCommand("decline", args)
	if err != nil {
		return err
	}
	if err := a.Inbox.Decline(ctx, id); err != nil {
		return err
	}
	a.printf("Invite #%d declined\n", id)
	return nil
}

func (a *App) invite(ctx context.Context, args []string) error {
	rest, err := a.parse(a.flags("invite"), args, 2)
	if err != nil {
		return err
	}
	missionID, err := parseID("mission", rest[0])
	if err != nil {
		return err
	}
	userID, err := parseID("user", rest[1])
	if err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	if err := a.Registry.Invite(ctx, missionID, userID); err != nil {
		return err
	}
	a.printf("User %d invited to mission #%d\n", userID, missionID)
	return nil
}

func (a *App) inviteCommand(name string, args []string) (int64, error) {
	rest, err := a.parse(a.flags(name), args, 1)
	if err != nil {
		return 0, err
	}
	id, err := parseID("invite", rest[0])
	if err != nil {
		return 0, err
	}
	if _, err := a.requireSession(); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *App) printInvites(invites []models.Invite) {
	if len(invites) == 0 {
		a.printf("No pending invites\n")
		return
	}
	w := tabwriter.NewWriter(a.Out, 2, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\tMISSION\tNAME\tCHIEF\tSTATUS\n")
	for _, inv := range invites {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", inv.ID, inv.MissionID, content.Sanitize(inv.MissionName), content.Sanitize(inv.ChiefName), inv.Status)
	}
	_ = w.Flush()
}
