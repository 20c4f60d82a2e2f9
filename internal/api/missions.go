package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"missionboard/internal/models"
)

var errBadMissionID = errors.New("invalid response from add mission")

// Missions lists missions matching filter. Empty filter fields are not sent.
func (c *Client) Missions(ctx context.Context, filter models.MissionFilter) ([]models.Mission, error) {
	query := url.Values{}
	if filter.Name != "" {
		query.Set("name", filter.Name)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}

	var missions []models.Mission
	err := c.doQuery(ctx, http.MethodGet, "/api/view/filter", query, nil, &missions)
	return missions, err
}

func (c *Client) Mission(ctx context.Context, missionID int64) (models.Mission, error) {
	var mission models.Mission
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/view/%d", missionID), nil, &mission)
	return mission, err
}

func (c *Client) MyMissions(ctx context.Context) ([]models.Mission, error) {
	var missions []models.Mission
	err := c.do(ctx, http.MethodGet, "/api/brawler/my-missions", nil, &missions)
	return missions, err
}

// CreateMission returns the id of the new mission. The backend answers
// either {"mission_id": N} or a bare id.
func (c *Client) CreateMission(ctx context.Context, mission models.NewMission) (int64, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/mission-management", mission, &raw); err != nil {
		return 0, err
	}
	return parseMissionID(raw)
}

func (c *Client) JoinMission(ctx context.Context, missionID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/crew/join/%d", missionID), nil, nil)
}

func (c *Client) LeaveMission(ctx context.Context, missionID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/crew/leave/%d", missionID), nil, nil)
}

func parseMissionID(raw json.RawMessage) (int64, error) {
	var obj struct {
		MissionID *int64 `json:"mission_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.MissionID != nil {
		return *obj.MissionID, nil
	}

	var num int64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
			return id, nil
		}
	}

	return 0, errBadMissionID
}

// StartMission moves a mission the caller leads to InProgress.
func (c *Client) StartMission(ctx context.Context, missionID int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/mission/in-progress/%d", missionID), nil, nil)
}

func (c *Client) CompleteMission(ctx context.Context, missionID int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/mission/to-completed/%d", missionID), nil, nil)
}

func (c *Client) FailMission(ctx context.Context, missionID int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/mission/to-failed/%d", missionID), nil, nil)
}

// Crew lists the members of a mission.
func (c *Client) Crew(ctx context.Context, missionID int64) ([]models.Brawler, error) {
	var crew []models.Brawler
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/view/crew/%d", missionID), nil, &crew)
	return crew, err
}

// KickCrew removes memberID from a mission. Only the chief may do this.
func (c *Client) KickCrew(ctx context.Context, missionID, memberID int64) error {
	body := struct {
		MemberID int64 `json:"member_id"`
	}{MemberID: memberID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/crew/kick/%d", missionID), body, nil)
}
