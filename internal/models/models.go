package models

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoSession = errors.New("no session token")
	// ErrSuperseded is returned by a connect that lost the race against
	// a newer connect or a disconnect.
	ErrSuperseded = errors.New("connection superseded")
)

// Session is the payload returned by login and registration.
// It is the only piece of state shared by every client component.
type Session struct {
	Token               string `json:"token"`
	DisplayName         string `json:"display_name"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	MissionSuccessCount int    `json:"mission_success_count,omitempty"`
	MissionJoinCount    int    `json:"mission_join_count,omitempty"`
}

// UserID decodes the numeric "sub" claim from the session token.
// The signature is not verified: the backend does that on every request.
func (s Session) UserID() (int64, bool) {
	if s.Token == "" {
		return 0, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return 0, false
	}

	switch sub := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		return int64(sub), true
	}
	return 0, false
}

// XP is the experience derived from mission counters.
func (s Session) XP() int {
	return s.MissionSuccessCount*500 + s.MissionJoinCount*100
}

func (s Session) Level() int {
	return s.XP()/1000 + 1
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeSystem MessageType = "system"
)

// ChatMessage is a single entry of a mission chat.
// ID is negative for messages synthesized locally from a live frame.
type ChatMessage struct {
	ID              int64       `json:"id"`
	MissionID       int64       `json:"mission_id"`
	UserID          *int64      `json:"user_id,omitempty"`
	UserDisplayName string      `json:"user_display_name,omitempty"`
	UserAvatarURL   string      `json:"user_avatar_url,omitempty"`
	Content         string      `json:"content"`
	Type            MessageType `json:"type_"`
	CreatedAt       string      `json:"created_at"`
}

// NormalizeCreatedAt marks a timestamp without zone designator as UTC.
func (m *ChatMessage) NormalizeCreatedAt() {
	m.CreatedAt = NormalizeTimestamp(m.CreatedAt)
}

// Time parses CreatedAt. The backend emits both RFC 3339 and naive
// timestamps with fractional seconds.
func (m ChatMessage) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, NormalizeTimestamp(m.CreatedAt))
}

// IsAuthor reports whether the message was written by userID.
func (m ChatMessage) IsAuthor(userID int64) bool {
	return m.UserID != nil && *m.UserID == userID
}

// NormalizeTimestamp appends the UTC marker when it is missing.
func NormalizeTimestamp(ts string) string {
	if ts == "" || strings.HasSuffix(ts, "Z") {
		return ts
	}
	return ts + "Z"
}

// ChatFrame is what the mission socket pushes for every new message.
type ChatFrame struct {
	ID              int64       `json:"id,omitempty"`
	UserID          *int64      `json:"user_id"`
	UserDisplayName string      `json:"user_display_name,omitempty"`
	UserAvatarURL   string      `json:"user_avatar_url,omitempty"`
	Content         string      `json:"content"`
	Type            MessageType `json:"type"`
	CreatedAt       string      `json:"created_at"`
}

type NotificationType string

const (
	NotificationTypeSystem              NotificationType = "System"
	NotificationTypeJoinMission         NotificationType = "JoinMission"
	NotificationTypeLeaveMission        NotificationType = "LeaveMission"
	NotificationTypeMissionStatusUpdate NotificationType = "MissionStatusUpdate"
	NotificationTypeInvite              NotificationType = "Invite"
)

// Notification is a transient alert, either pushed by the server or
// raised locally.
type Notification struct {
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Type     NotificationType `json:"notification_type"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	// RecipientID is nil for broadcasts.
	RecipientID *int64 `json:"recipient_id,omitempty"`
	// Local is set on notifications raised by the client itself.
	Local bool `json:"-"`
}

// Invite is a pending offer to join a mission.
type Invite struct {
	ID          int64  `json:"id"`
	MissionID   int64  `json:"mission_id"`
	MissionName string `json:"mission_name"`
	ChiefName   string `json:"chief_name"`
	Status      string `json:"status"`
}

type MissionStatus string

const (
	MissionStatusOpen       MissionStatus = "Open"
	MissionStatusInProgress MissionStatus = "InProgress"
	MissionStatusCompleted  MissionStatus = "Completed"
	MissionStatusFailed     MissionStatus = "Failed"
)

type Mission struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Category         string        `json:"category,omitempty"`
	Status           MissionStatus `json:"status"`
	ChiefID          int64         `json:"chief_id"`
	ChiefDisplayName string        `json:"chief_display_name"`
	CrewCount        int           `json:"crew_count"`
	MaxCrew          int           `json:"max_crew"`
	CreatedAt        string        `json:"created_at"`
	UpdatedAt        string        `json:"updated_at"`
	IsMember         bool          `json:"is_member,omitempty"`
	ImageURL         string        `json:"image_url,omitempty"`
	Difficulty       string        `json:"difficulty,omitempty"`
	Duration         string        `json:"duration,omitempty"`
	Location         string        `json:"location,omitempty"`
	MinLevel         int           `json:"min_level,omitempty"`
}

type MissionFilter struct {
	Name   string
	Status MissionStatus
}

// NewMission is the body of a mission creation request.
type NewMission struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	MaxCrew     int    `json:"max_crew,omitempty"`
}

// Brawler is a leaderboard row.
type Brawler struct {
	ID                  int64  `json:"id"`
	DisplayName         string `json:"display_name"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	MissionSuccessCount int    `json:"mission_success_count"`
	MissionJoinCount    int    `json:"mission_join_count"`
}
