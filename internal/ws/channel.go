package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"missionboard/internal/fanout"
	"missionboard/internal/models"

	"github.com/gorilla/websocket"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var errEmptyFrame = errors.New("empty chat frame")

// Sessions gives read access to the current session.
type Sessions interface {
	Current() (models.Session, bool)
}

type ChannelConfig struct {
	Dialer   Dialer
	URL      func(missionID int64, token string) string
	Sessions Sessions
}

// Channel is the live chat connection of one mission at a time.
// Connecting to another mission replaces the previous connection.
type Channel struct {
	ctx      context.Context
	dialer   Dialer
	url      func(missionID int64, token string) string
	sessions Sessions

	conn      Conn
	state     State
	missionID int64
	// gen changes whenever the current connection is replaced or
	// closed, so a stale reader never touches its successor.
	gen uint64
	mu  sync.Mutex
	// publishMu is held across delivery and across closing, so once
	// Connect or Disconnect has closed a connection none of its frames
	// reach subscribers. Subscribers must not call back into Channel.
	publishMu sync.Mutex

	localID  atomic.Int64
	messages fanout.Hub[models.ChatMessage]
}

func NewChannel(ctx context.Context, cfg ChannelConfig) *Channel {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewDialer(nil)
	}
	c := &Channel{
		ctx:      ctx,
		dialer:   dialer,
		url:      cfg.URL,
		sessions: cfg.Sessions,
	}
	c.localID.Store(-time.Now().UnixMilli())
	return c
}

// Connect closes the current connection, if any, and opens the chat
// of missionID. Without a session token nothing is dialed.
func (c *Channel) Connect(missionID int64) error {
	c.publishMu.Lock()
	c.mu.Lock()
	c.closeLocked()
	c.publishMu.Unlock()

	session, ok := c.sessions.Current()
	if !ok || session.Token == "" {
		c.mu.Unlock()
		slog.Error("no token found, cannot connect to mission chat", "mission_id", missionID)
		return models.ErrNoSession
	}

	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.missionID = missionID
	c.mu.Unlock()

	conn, err := c.dialer.DialContext(c.ctx, c.url(missionID, session.Token))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return models.ErrSuperseded
	}
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		slog.Error("mission chat connection failed", "mission_id", missionID, "error", err)
		return fmt.Errorf("connect mission %d chat: %w", missionID, err)
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	slog.Info("connected to mission chat", "mission_id", missionID)
	go c.readLoop(gen, conn, missionID)
	return nil
}

// SendMessage writes text to the open connection. When the channel is
// not open the message is dropped with a warning.
func (c *Channel) SendMessage(text string) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.conn == nil {
		slog.Warn("mission chat not connected, message dropped", "state", c.state.String())
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		slog.Error("failed to send chat message", "mission_id", c.missionID, "error", err)
		c.closeLocked()
	}
}

// Disconnect closes the connection. It is safe to call at any time.
func (c *Channel) Disconnect() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MissionID is the mission of the current or last connection.
func (c *Channel) MissionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missionID
}

// Subscribe registers fn for every inbound message.
func (c *Channel) Subscribe(fn func(models.ChatMessage)) func() {
	return c.messages.Subscribe(fn)
}

func (c *Channel) closeLocked() {
	if c.state == StateConnecting || c.state == StateOpen {
		c.gen++
		c.state = StateClosed
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Debug("error closing mission chat", "error", err)
		}
		c.conn = nil
	}
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Channel) readLoop(gen uint64, conn Conn, missionID int64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.gen == gen {
				c.closeLocked()
				c.mu.Unlock()
				slog.Warn("mission chat closed", "mission_id", missionID, "error", err)
				return
			}
			c.mu.Unlock()
			return
		}

		msg, err := c.decode(missionID, data)
		if err != nil {
			slog.Warn("error parsing chat frame", "mission_id", missionID, "error", err)
			continue
		}

		if !c.publish(gen, msg) {
			return
		}
	}
}

// publish delivers msg unless the connection of gen has been closed.
func (c *Channel) publish(gen uint64, msg models.ChatMessage) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if !c.current(gen) {
		return false
	}
	c.messages.Publish(msg)
	return true
}

func (c *Channel) decode(missionID int64, data []byte) (models.ChatMessage, error) {
	var frame *models.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return models.ChatMessage{}, err
	}
	if frame == nil {
		return models.ChatMessage{}, errEmptyFrame
	}

	msg := models.ChatMessage{
		ID:              frame.ID,
		MissionID:       missionID,
		UserID:          frame.UserID,
		UserDisplayName: frame.UserDisplayName,
		UserAvatarURL:   frame.UserAvatarURL,
		Content:         frame.Content,
		Type:            frame.Type,
		CreatedAt:       frame.CreatedAt,
	}
	if msg.ID <= 0 {
		msg.ID = c.localID.Add(-1)
	}
	if msg.Type == "" {
		msg.Type = models.MessageTypeChat
	}
	msg.NormalizeCreatedAt()

	// The socket does not carry author profiles; fill in our own.
	if session, ok := c.sessions.Current(); ok {
		if userID, ok := session.UserID(); ok && msg.IsAuthor(userID) {
			if msg.UserDisplayName == "" {
				msg.UserDisplayName = session.DisplayName
			}
			if msg.UserAvatarURL == "" {
				msg.UserAvatarURL = session.AvatarURL
			}
		}
	}

	return msg, nil
}
