package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"missionboard/internal/models"

	"github.com/h2non/filetype"
)

var ErrNotImage = errors.New("avatar must be an image")

type uploadedImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

func (c *Client) Leaderboard(ctx context.Context) ([]models.Brawler, error) {
	var brawlers []models.Brawler
	err := c.do(ctx, http.MethodGet, "/api/brawler/leaderboard", nil, &brawlers)
	return brawlers, err
}

// UploadAvatar sends an image and returns the URL it is served from.
func (c *Client) UploadAvatar(ctx context.Context, data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", ErrNotImage
	}

	body := struct {
		Base64String string `json:"base64_string"`
	}{Base64String: base64.StdEncoding.EncodeToString(data)}

	var image uploadedImage
	if err := c.do(ctx, http.MethodPost, "/api/brawler/avatar", body, &image); err != nil {
		return "", err
	}
	if image.URL == "" {
		return "", fmt.Errorf("avatar upload returned no url")
	}
	return image.URL, nil
}
