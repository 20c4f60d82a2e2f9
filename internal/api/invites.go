package api

import (
	"context"
	"fmt"
	"net/http"

	"missionboard/internal/models"
)

func (c *Client) MyInvites(ctx context.Context) ([]models.Invite, error) {
	var invites []models.Invite
	err := c.do(ctx, http.MethodGet, "/api/mission-invites/my-invites", nil, &invites)
	return invites, err
}

func (c *Client) InviteToMission(ctx context.Context, missionID, userID int64) error {
	body := struct {
		UserID int64 `json:"user_id"`
	}{UserID: userID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/mission-invites/mission/%d/invite", missionID), body, nil)
}

func (c *Client) AcceptInvite(ctx context.Context, inviteID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/mission-invites/invite/%d/accept", inviteID), struct{}{}, nil)
}

func (c *Client) DeclineInvite(ctx context.Context, inviteID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/mission-invites/invite/%d/decline", inviteID), struct{}{}, nil)
}
