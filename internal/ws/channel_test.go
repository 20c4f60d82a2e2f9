package ws

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"missionboard/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type serverConn struct {
	missionID string
	token     string
	ws        *websocket.Conn
	received  chan string
	closed    chan struct{}
}

type chatServer struct {
	*httptest.Server
	conns chan *serverConn
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	cs := &chatServer{conns: make(chan *serverConn, 10)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ws/mission/{id}", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{
			missionID: r.PathValue("id"),
			token:     token,
			ws:        conn,
			received:  make(chan string, 10),
			closed:    make(chan struct{}),
		}
		cs.conns <- sc
		defer close(sc.closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			sc.received <- string(data)
		}
	})

	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func (cs *chatServer) url(missionID int64, token string) string {
	return "ws" + strings.TrimPrefix(cs.URL, "http") + "/api/ws/mission/" + strconv.FormatInt(missionID, 10) + "?token=" + token
}

func (cs *chatServer) next(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-cs.conns:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func jwtFor(userID int) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256"}`)) + "." +
		enc.EncodeToString([]byte(`{"sub":"`+strconv.Itoa(userID)+`"}`)) + "." +
		enc.EncodeToString([]byte("sig"))
}

func TestChannel_EndToEnd(t *testing.T) {
	cs := newChatServer(t)
	token := jwtFor(7)
	sessions := &fakeSessions{session: &models.Session{Token: token, DisplayName: "Alice", AvatarURL: "a.png"}}

	ch := NewChannel(context.Background(), ChannelConfig{
		Dialer:   NewDialer(nil),
		URL:      cs.url,
		Sessions: sessions,
	})
	defer ch.Disconnect()

	received := make(chan models.ChatMessage, 10)
	ch.Subscribe(func(m models.ChatMessage) { received <- m })

	require.NoError(t, ch.Connect(1))
	first := cs.next(t)
	require.Equal(t, "1", first.missionID)
	require.Equal(t, token, first.token)

	require.NoError(t, ch.Connect(2))
	second := cs.next(t)
	require.Equal(t, "2", second.missionID)

	select {
	case <-first.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection to mission 1 not closed")
	}
	require.Equal(t, StateOpen, ch.State())

	ch.SendMessage("hello crew")
	select {
	case text := <-second.received:
		require.Equal(t, "hello crew", text)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}

	frames := []string{
		`{"user_id":7,"content":"mine","type":"chat","created_at":"2026-03-01T12:00:00.123"}`,
		`not json`,
		`{"user_id":9,"user_display_name":"Bob","content":"theirs","type":"chat","created_at":"2026-03-01T12:00:01Z"}`,
		`{"user_id":null,"content":"Bob joined","type":"system","created_at":"2026-03-01T12:00:02"}`,
	}
	for _, f := range frames {
		require.NoError(t, second.ws.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	var got []models.ChatMessage
	for len(got) < 3 {
		select {
		case m := <-received:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 3 messages, got %d", len(got))
		}
	}

	require.Equal(t, "mine", got[0].Content)
	require.Equal(t, "Alice", got[0].UserDisplayName)
	require.Equal(t, "a.png", got[0].UserAvatarURL)
	require.Equal(t, "2026-03-01T12:00:00.123Z", got[0].CreatedAt)
	require.Equal(t, int64(2), got[0].MissionID)

	require.Equal(t, "theirs", got[1].Content)
	require.Equal(t, "Bob", got[1].UserDisplayName)
	require.Equal(t, "2026-03-01T12:00:01Z", got[1].CreatedAt)

	require.Equal(t, models.MessageTypeSystem, got[2].Type)
	require.Nil(t, got[2].UserID)

	ids := map[int64]bool{}
	for _, m := range got {
		require.Less(t, m.ID, int64(0), "live messages get a negative placeholder id")
		require.False(t, ids[m.ID], "placeholder ids must be unique")
		ids[m.ID] = true
	}

	// The connection survived the malformed frame.
	require.Equal(t, StateOpen, ch.State())
}

func TestChannel_ServerClose(t *testing.T) {
	cs := newChatServer(t)
	ch := NewChannel(context.Background(), ChannelConfig{
		URL:      cs.url,
		Sessions: &fakeSessions{session: &models.Session{Token: "tok"}},
	})

	require.NoError(t, ch.Connect(4))
	sc := cs.next(t)
	require.NoError(t, sc.ws.Close())

	require.Eventually(t, func() bool { return ch.State() == StateClosed }, 2*time.Second, 10*time.Millisecond)

	select {
	case <-cs.conns:
		t.Fatal("channel reconnected on its own")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannel_Unauthorized(t *testing.T) {
	cs := newChatServer(t)
	ch := NewChannel(context.Background(), ChannelConfig{
		URL: func(missionID int64, _ string) string {
			return cs.url(missionID, "")
		},
		Sessions: &fakeSessions{session: &models.Session{Token: "tok"}},
	})

	err := ch.Connect(1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Equal(t, StateClosed, ch.State())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "state(9)", State(9).String())
}
