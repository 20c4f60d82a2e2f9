package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"missionboard/internal/fanout"
	"missionboard/internal/models"
)

const DefaultMaxRecords = 500

type Filter string

const (
	FilterAll      Filter = "all"
	FilterChat     Filter = "chat"
	FilterActivity Filter = "activity"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(s)); f {
	case FilterAll, FilterChat, FilterActivity:
		return f, nil
	case "":
		return FilterAll, nil
	}
	return "", fmt.Errorf("unknown chat filter %q", s)
}

// Match reports whether m is shown under f.
func (f Filter) Match(m models.ChatMessage) bool {
	switch f {
	case FilterChat:
		return m.Type != models.MessageTypeSystem
	case FilterActivity:
		return m.Type == models.MessageTypeSystem
	}
	return true
}

// Channel is the live connection a room reads from and writes to.
type Channel interface {
	Connect(missionID int64) error
	Disconnect()
	SendMessage(text string)
	Subscribe(fn func(models.ChatMessage)) func()
}

type History interface {
	MissionMessages(ctx context.Context, missionID int64) ([]models.ChatMessage, error)
}

type Config struct {
	Channel    Channel
	History    History
	MaxRecords int
}

// Room holds the visible chat of one mission: the loaded history
// followed by live messages, bounded to the last MaxRecords entries.
type Room struct {
	channel Channel
	history History

	missionID int64
	// records is a ring buffer; lastIndex points at the newest entry.
	records    []models.ChatMessage
	lastIndex  int
	maxRecords int
	mux        sync.RWMutex

	updates fanout.Hub[models.ChatMessage]
}

func New(config Config) *Room {
	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	r := &Room{
		channel:    config.Channel,
		history:    config.History,
		lastIndex:  -1,
		maxRecords: maxRecords,
	}
	if r.channel != nil {
		r.channel.Subscribe(r.Add)
	}
	return r
}

// Open switches the room to missionID: the live channel is connected
// and the history replaces whatever the room showed before. History
// that arrives after the room moved on to another mission is dropped.
func (r *Room) Open(ctx context.Context, missionID int64) error {
	r.mux.Lock()
	r.missionID = missionID
	r.resetLocked()
	r.mux.Unlock()

	if r.channel != nil {
		if err := r.channel.Connect(missionID); err != nil {
			slog.Warn("live chat unavailable", "mission_id", missionID, "error", err)
		}
	}

	history, err := r.history.MissionMessages(ctx, missionID)
	if err != nil {
		return fmt.Errorf("load mission %d chat: %w", missionID, err)
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	if r.missionID != missionID {
		slog.Debug("discarding stale chat history", "mission_id", missionID, "current", r.missionID)
		return nil
	}

	r.resetLocked()
	for _, m := range history {
		m.MissionID = missionID
		m.NormalizeCreatedAt()
		r.pushLocked(m)
	}
	return nil
}

// Add appends a live message. Messages of other missions are ignored.
func (r *Room) Add(m models.ChatMessage) {
	r.mux.Lock()
	if r.missionID == 0 || m.MissionID != r.missionID {
		r.mux.Unlock()
		return
	}
	m.NormalizeCreatedAt()
	r.pushLocked(m)
	r.mux.Unlock()

	r.updates.Publish(m)
}

// Messages returns the buffered messages matching filter, oldest first.
func (r *Room) Messages(filter Filter) []models.ChatMessage {
	r.mux.RLock()
	defer r.mux.RUnlock()

	result := make([]models.ChatMessage, 0, len(r.records))
	head := 0
	if len(r.records) == r.maxRecords {
		head = (r.lastIndex + 1) % r.maxRecords
	}
	for i := range r.records {
		m := r.records[(head+i)%len(r.records)]
		if filter.Match(m) {
			result = append(result, m)
		}
	}
	return result
}

// Send forwards text to the live channel. Blank input is ignored.
func (r *Room) Send(text string) {
	text = strings.TrimSpace(text)
	if text == "" || r.channel == nil {
		return
	}
	r.channel.SendMessage(text)
}

func (r *Room) MissionID() int64 {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.missionID
}

// Subscribe registers fn for every live message accepted by the room.
func (r *Room) Subscribe(fn func(models.ChatMessage)) func() {
	return r.updates.Subscribe(fn)
}

func (r *Room) Close() {
	r.mux.Lock()
	r.missionID = 0
	r.resetLocked()
	r.mux.Unlock()

	if r.channel != nil {
		r.channel.Disconnect()
	}
}

func (r *Room) resetLocked() {
	r.records = nil
	r.lastIndex = -1
}

func (r *Room) pushLocked(m models.ChatMessage) {
	if len(r.records) < r.maxRecords {
		r.records = append(r.records, m)
		r.lastIndex++
		return
	}
	i := (r.lastIndex + 1) % r.maxRecords
	r.records[i] = m
	r.lastIndex = i
}
