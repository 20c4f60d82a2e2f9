package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"missionboard/internal/models"

	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/"}, staticToken(token))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)
}

func TestClient_Login(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/authentication/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		_ = json.NewEncoder(w).Encode(models.Session{Token: "tok", DisplayName: req.Username})
	})

	c := newTestClient(t, mux, "")

	session, err := c.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "tok", session.Token)
	require.Equal(t, "alice", session.DisplayName)

	_, err = c.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusUnauthorized))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestClient_BearerToken(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mission-chat/42/messages", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[{"id":1,"mission_id":42,"user_id":7,"content":"hi","type_":"chat","created_at":"2026-01-01T10:00:00"}]`))
	})

	c := newTestClient(t, mux, "tok")

	messages, err := c.MissionMessages(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Content)
	require.NotNil(t, messages[0].UserID)
	require.Equal(t, int64(7), *messages[0].UserID)
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"JSON message", http.StatusBadRequest, `{"message":"mission full"}`, "mission full"},
		{"JSON error", http.StatusConflict, `{"error":"already joined"}`, "already joined"},
		{"Plain text", http.StatusForbidden, "Not the chief", "Not the chief"},
		{"Empty", http.StatusNotFound, "", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), "tok")

			err := c.JoinMission(context.Background(), 1)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.expected, apiErr.Message)
		})
	}
}

func TestClient_Invites(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mission-invites/my-invites", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"mission_id":10,"mission_name":"Heist","chief_name":"Boss","status":"Pending"}]`))
	})
	mux.HandleFunc("POST /api/mission-invites/invite/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "accept "+r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/mission-invites/invite/{id}/decline", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "decline "+r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/mission-invites/mission/{id}/invite", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID int64 `json:"user_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, "invite "+r.PathValue("id"))
		if body.UserID != 5 {
			t.Errorf("expected user_id 5, got %d", body.UserID)
		}
	})

	c := newTestClient(t, mux, "tok")
	ctx := context.Background()

	invites, err := c.MyInvites(ctx)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.Equal(t, "Heist", invites[0].MissionName)

	require.NoError(t, c.AcceptInvite(ctx, 1))
	require.NoError(t, c.DeclineInvite(ctx, 2))
	require.NoError(t, c.InviteToMission(ctx, 10, 5))
	require.Equal(t, []string{"accept 1", "decline 2", "invite 10"}, calls)
}

func TestClient_Missions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/view/filter", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "Open" || r.URL.Query().Get("name") != "dragon" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id":3,"name":"Slay the dragon","status":"Open","chief_id":1,"crew_count":2,"max_crew":5}]`))
	})
	mux.HandleFunc("DELETE /api/crew/leave/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, mux, "tok")

	missions, err := c.Missions(context.Background(), models.MissionFilter{Name: "dragon", Status: models.MissionStatusOpen})
	require.NoError(t, err)
	require.Len(t, missions, 1)
	require.Equal(t, 5, missions[0].MaxCrew)

	require.NoError(t, c.LeaveMission(context.Background(), 3))
}

func TestClient_MissionLifecycle(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	for _, route := range []string{"in-progress", "to-completed", "to-failed"} {
		mux.HandleFunc("PATCH /api/mission/"+route+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, route+" "+r.PathValue("id"))
			_, _ = w.Write([]byte(r.PathValue("id")))
		})
	}
	mux.HandleFunc("GET /api/view/crew/4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":9,"display_name":"Bob","avatar_url":"","mission_success_count":1,"mission_join_count":3}]`))
	})
	mux.HandleFunc("POST /api/crew/kick/4", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["member_id"] == 9 {
			calls = append(calls, "kick 9")
			_, _ = w.Write([]byte(`{"message":"Member kicked"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Only the Chief can kick members"}`))
	})

	c := newTestClient(t, mux, "tok")
	ctx := context.Background()

	require.NoError(t, c.StartMission(ctx, 4))
	require.NoError(t, c.CompleteMission(ctx, 4))
	require.NoError(t, c.FailMission(ctx, 5))

	crew, err := c.Crew(ctx, 4)
	require.NoError(t, err)
	require.Len(t, crew, 1)
	require.Equal(t, "Bob", crew[0].DisplayName)
	require.Equal(t, 3, crew[0].MissionJoinCount)

	require.NoError(t, c.KickCrew(ctx, 4, 9))
	err = c.KickCrew(ctx, 4, 1)
	require.True(t, IsStatus(err, http.StatusForbidden))
	require.Contains(t, err.Error(), "Only the Chief can kick members")

	require.Equal(t, []string{"in-progress 4", "to-completed 4", "to-failed 5", "kick 9"}, calls)
}

func TestParseMissionID(t *testing.T) {
	tests := []struct {
		raw      string
		expected int64
		wantErr  bool
	}{
		{`{"mission_id":12}`, 12, false},
		{`13`, 13, false},
		{`"14"`, 14, false},
		{`{"id":1}`, 0, true},
		{`"abc"`, 0, true},
	}

	for _, tt := range tests {
		id, err := parseMissionID(json.RawMessage(tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMissionID(%s): expected error", tt.raw)
			}
			continue
		}
		if err != nil || id != tt.expected {
			t.Errorf("parseMissionID(%s) = (%d, %v), want %d", tt.raw, id, err, tt.expected)
		}
	}
}

func TestClient_UploadAvatar(t *testing.T) {
	png, err := base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/brawler/avatar", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Base64String string `json:"base64_string"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Base64String == "" {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/avatar.png","public_id":"avatar"}`))
	})

	c := newTestClient(t, mux, "tok")

	url, err := c.UploadAvatar(context.Background(), png)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/avatar.png", url)

	_, err = c.UploadAvatar(context.Background(), []byte("definitely not an image"))
	require.ErrorIs(t, err, ErrNotImage)
}

func TestClient_URLs(t *testing.T) {
	c, err := New(Config{BaseURL: "https://board.example.com/"}, nil)
	require.NoError(t, err)

	require.Equal(t, "wss://board.example.com/api/ws/mission/42?token=abc", c.ChatURL(42, "abc"))
	require.Equal(t, "https://board.example.com/api/notifications/events?token=abc", c.NotificationsURL("abc"))

	c, err = New(Config{BaseURL: "http://localhost:8000"}, nil)
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8000/api/ws/mission/1?token=a%2Bb", c.ChatURL(1, "a+b"))
}
