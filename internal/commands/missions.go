package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"missionboard/internal/content"
	"missionboard/internal/models"
)

func (a *App) missions(ctx context.Context, args []string) error {
	fs := a.flags("missions")
	name := fs.String("name", "", "only missions whose name contains text")
	status := fs.String("status", "", "only missions with this status")
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}

	filter := models.MissionFilter{Name: *name}
	if *status != "" {
		s, err := parseStatus(*status)
		if err != nil {
			return err
		}
		filter.Status = s
	}

	missions, err := a.API.Missions(ctx, filter)
	if err != nil {
		return err
	}
	a.printMissions(missions)
	return nil
}

func (a *App) myMissions(ctx context.Context, args []string) error {
	if _, err := a.parse(a.flags("my-missions"), args, 0); err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	missions, err := a.API.MyMissions(ctx)
	if err != nil {
		return err
	}
	a.printMissions(missions)
	return nil
}

func (a *App) mission(ctx context.Context, args []string) error {
	rest, err := a.parse(a.flags("mission"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID("mission", rest[0])
	if err != nil {
		return err
	}

	m, err := a.API.Mission(ctx, id)
	if err != nil {
		return err
	}

	a.printf("#%d %s\n", m.ID, content.Sanitize(m.Name))
	a.printf("Status:    %s\n", m.Status)
	a.printf("Chief:     %s\n", content.Sanitize(m.ChiefDisplayName))
	a.printf("Crew:      %s\n", crew(m))
	if m.Category != "" {
		a.printf("Category:  %s\n", content.Sanitize(m.Category))
	}
	if m.Difficulty != "" {
		a.printf("Difficulty: %s\n", content.Sanitize(m.Difficulty))
	}
	if m.Location != "" {
		a.printf("Location:  %s\n", content.Sanitize(m.Location))
	}
	if m.MinLevel > 0 {
		a.printf("Min level: %d\n", m.MinLevel)
	}
	if m.Description != "" {
		a.printf("\n%s\n", content.Sanitize(m.Description))
	}
	return nil
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := a.flags("create")
	name := fs.String("name", "", "mission name")
	description := fs.String("description", "", "mission description")
	category := fs.String("category", "", "mission category")
	maxCrew := fs.Int("max-crew", 0, "crew limit (0 for the server default)")
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("%w: --name is required", ErrUsage)
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	id, err := a.API.CreateMission(ctx, models.NewMission{
		Name:        *name,
		Description: *description,
		Category:    *category,
		MaxCrew:     *maxCrew,
	})
	if err != nil {
		return err
	}
	a.printf("Mission #%d created\n", id)
	return nil
}

func (a *App) join(ctx context.Context, args []string) error {
	id, err := a.missionCommand("join", args)
	if err != nil {
		return err
	}
	if err := a.API.JoinMission(ctx, id); err != nil {
		return err
	}
	a.printf("Joined mission #%d\n", id)
	return nil
}

func (a *App) leave(ctx context.Context, args []string) error {
	id, err := a.missionCommand("leave", args)
	if err != nil {
		return err
	}
	if err := a.API.LeaveMission(ctx, id); err != nil {
		return err
	}
	a.printf("Left mission #%d\n", id)
	return nil
}

func (a *App) start(ctx context.Context, args []string) error {
	return a.transition(ctx, "start", args, a.API.StartMission, "Mission #%d started\n")
}

func (a *App) complete(ctx context.Context, args []string) error {
	return a.transition(ctx, "complete", args, a.API.CompleteMission, "Mission #%d completed\n")
}

func (a *App) fail(ctx context.Context, args []string) error {
	return a.transition(ctx, "fail", args, a.API.FailMission, "Mission #%d marked as failed\n")
}

func (a *App) transition(ctx context.Context, name string, args []string, apply func(context.Context, int64) error, done string) error {
	id, err := a.missionCommand(name, args)
	if err != nil {
		return err
	}
	if err := apply(ctx, id); err != nil {
		return err
	}
	a.printf(done, id)
	return nil
}

func (a *App) crewList(ctx context.Context, args []string) error {
	id, err := a.missionCommand("crew", args)
	if err != nil {
		return err
	}

	members, err := a.API.Crew(ctx, id)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		a.printf("No crew\n")
		return nil
	}

	w := tabwriter.NewWriter(a.Out, 2, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\tNAME\tLEVEL\n")
	for _, b := range members {
		level := models.Session{MissionSuccessCount: b.MissionSuccessCount, MissionJoinCount: b.MissionJoinCount}.Level()
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", b.ID, content.Sanitize(b.DisplayName), level)
	}
	return w.Flush()
}

func (a *App) kick(ctx context.Context, args []string) error {
	rest, err := a.parse(a.flags("kick"), args, 2)
	if err != nil {
		return err
	}
	missionID, err := parseID("mission", rest[0])
	if err != nil {
		return err
	}
	memberID, err := parseID("member", rest[1])
	if err != nil {
		return err
	}
	if _, err := a.requireSession(); err != nil {
		return err
	}

	if err := a.API.KickCrew(ctx, missionID, memberID); err != nil {
		return err
	}
	a.printf("Removed #%d from mission #%d\n", memberID, missionID)
	return nil
}

func (a *App) leaderboard(ctx context.Context, args []string) error {
	if _, err := a.parse(a.flags("leaderboard"), args, 0); err != nil {
		return err
	}

	brawlers, err := a.API.Leaderboard(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.Out, 2, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "RANK\tNAME\tLEVEL\tSUCCESS\tJOINED\n")
	for i, b := range brawlers {
		level := models.Session{MissionSuccessCount: b.MissionSuccessCount, MissionJoinCount: b.MissionJoinCount}.Level()
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", i+1, content.Sanitize(b.DisplayName), level, b.MissionSuccessCount, b.MissionJoinCount)
	}
	return w.Flush()
}

func (a *App) missionCommand(name string, args []string) (int64, error) {
	rest, err := a.parse(a.flags(name), args, 1)
	if err != nil {
		return 0, err
	}
	id, err := parseID("mission", rest[0])
	if err != nil {
		return 0, err
	}
	if _, err := a.requireSession(); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *App) printMissions(missions []models.Mission) {
	if len(missions) == 0 {
		a.printf("No missions\n")
		return
	}
	w := tabwriter.NewWriter(a.Out, 2, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID\tNAME\tSTATUS\tCHIEF\tCREW\n")
	for _, m := range missions {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.ID, content.Sanitize(m.Name), m.Status, content.Sanitize(m.ChiefDisplayName), crew(m))
	}
	_ = w.Flush()
}

func crew(m models.Mission) string {
	if m.MaxCrew > 0 {
		return fmt.Sprintf("%d/%d", m.CrewCount, m.MaxCrew)
	}
	return fmt.Sprintf("%d", m.CrewCount)
}

func parseStatus(s string) (models.MissionStatus, error) {
	for _, status := range []models.MissionStatus{
		models.MissionStatusOpen,
		models.MissionStatusInProgress,
		models.MissionStatusCompleted,
		models.MissionStatusFailed,
	} {
		if strings.EqualFold(s, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mission status %q", ErrUsage, s)
}
