package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"missionboard/internal/fanout"
	"missionboard/internal/models"

	"github.com/google/uuid"
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

// TokenSource yields the current session token, or "" when logged out.
type TokenSource interface {
	Token() string
}

type Config struct {
	// HTTPClient must not carry a response timeout: the stream is
	// expected to stay open for the whole session.
	HTTPClient *http.Client
	URL        func(token string) string
	Tokens     TokenSource
}

// Channel is the per-session notification stream. It never reconnects
// on its own; a dropped stream stays down until the next session change.
type Channel struct {
	ctx    context.Context
	client *http.Client
	url    func(token string) string
	tokens TokenSource

	cancel context.CancelFunc
	state  State
	gen    uint64
	mu     sync.Mutex
	// publishMu is held across delivery and across closing, so a closed
	// stream never delivers another event. Subscribers must not call
	// back into Channel.
	publishMu sync.Mutex

	notifications fanout.Hub[models.Notification]
}

func NewChannel(ctx context.Context, cfg Config) *Channel {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Channel{
		ctx:    ctx,
		client: client,
		url:    cfg.URL,
		tokens: cfg.Tokens,
	}
}

// Connect replaces the current stream with a new one for the current token.
func (c *Channel) Connect() error {
	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	return c.connect(token)
}

func (c *Channel) connect(token string) error {
	c.publishMu.Lock()
	c.mu.Lock()
	c.closeLocked()
	c.publishMu.Unlock()

	if token == "" {
		c.mu.Unlock()
		slog.Error("no token found, cannot connect to notifications")
		return models.ErrNoSession
	}

	c.gen++
	gen := c.gen
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.mu.Unlock()

	body, err := c.open(ctx, token)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if body != nil {
			_ = body.Close()
		}
		cancel()
		return models.ErrSuperseded
	}
	if err != nil {
		c.closeLocked()
		c.mu.Unlock()
		slog.Error("notification stream failed", "error", err)
		return err
	}
	c.state = StateOpen
	c.mu.Unlock()

	slog.Info("connected to notifications")
	go c.readLoop(gen, body)
	return nil
}

func (c *Channel) open(ctx context.Context, token string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(token), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open notification stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open notification stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Disconnect closes the stream. It is safe to call at any time.
func (c *Channel) Disconnect() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// HandleSessionChange follows the session lifecycle: a session with a
// token opens the stream, anything else closes it.
func (c *Channel) HandleSessionChange(session *models.Session) {
	if session == nil || session.Token == "" {
		c.Disconnect()
		return
	}
	if err := c.connect(session.Token); err != nil && !errors.Is(err, models.ErrSuperseded) {
		slog.Warn("notifications unavailable for this session", "error", err)
	}
}

// ShowLocalNotification delivers n to subscribers as if the server
// had sent it.
func (c *Channel) ShowLocalNotification(n models.Notification) {
	n.Local = true
	c.notifications.Publish(n)
}

func (c *Channel) Subscribe(fn func(models.Notification)) func() {
	return c.notifications.Subscribe(fn)
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) closeLocked() {
	if c.state == StateConnecting || c.state == StateOpen {
		c.gen++
		c.state = StateClosed
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// publish delivers n unless the stream of gen has been closed.
func (c *Channel) publish(gen uint64, n models.Notification) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if !c.current(gen) {
		return false
	}
	c.notifications.Publish(n)
	return true
}

func (c *Channel) readLoop(gen uint64, body io.ReadCloser) {
	defer func() { _ = body.Close() }()

	scanner := NewScanner(body)
	for scanner.Next() {
		var n *models.Notification
		if err := json.Unmarshal([]byte(scanner.Event().Data), &n); err != nil {
			slog.Warn("error parsing notification", "error", err)
			continue
		}
		if n == nil {
			slog.Warn("ignoring empty notification", "event", scanner.Event().Type)
			continue
		}
		if !c.publish(gen, *n) {
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.closeLocked()
	slog.Warn("notification stream closed", "error", scanner.Err())
}
