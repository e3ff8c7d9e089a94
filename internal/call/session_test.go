package call

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// callService scripts the signaling server side of one connection.
type callService struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	refuse  string // non-empty: refuse joins with this message
	ackMode string // "ack", "error", or "silent"

	joins    chan clientMessage
	requests chan clientMessage
	leaves   chan clientMessage
	conns    chan *websocket.Conn
}

func newCallService(t *testing.T) (*callService, string) {
	t.Helper()
	svc := &callService{
		ackMode:  "ack",
		joins:    make(chan clientMessage, 4),
		requests: make(chan clientMessage, 16),
		leaves:   make(chan clientMessage, 4),
		conns:    make(chan *websocket.Conn, 4),
	}
	srv := httptest.NewServer(http.HandlerFunc(svc.handle))
	t.Cleanup(srv.Close)
	return svc, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (s *callService) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.conns <- conn
	defer conn.Close()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "join":
			s.joins <- msg
			s.mu.Lock()
			refuse := s.refuse
			s.mu.Unlock()
			if refuse != "" {
				_ = conn.WriteJSON(callServerMessage{Type: "error", Message: refuse})
				return
			}
			_ = conn.WriteJSON(callServerMessage{Type: "joined"})
		case "transcription-start", "transcription-stop":
			s.requests <- msg
			s.mu.Lock()
			mode := s.ackMode
			s.mu.Unlock()
			switch mode {
			case "ack":
				_ = conn.WriteJSON(callServerMessage{Type: "ack", ID: msg.ID})
			case "error":
				_ = conn.WriteJSON(callServerMessage{Type: "error", ID: msg.ID, Message: "transcription unavailable"})
			}
		case "leave":
			s.leaves <- msg
			_ = conn.WriteJSON(callServerMessage{Type: "left"})
		}
	}
}

func joinTestSession(t *testing.T, svc *callService, url string, onState func(State)) *Session {
	t.Helper()
	client := &Client{URL: url, DialTimeout: 2 * time.Second}
	session, err := client.Join(context.Background(), "room-42", onState)
	require.NoError(t, err)
	t.Cleanup(session.Leave)
	return session
}

func TestJoinAnnouncesClient(t *testing.T) {
	svc, url := newCallService(t)

	session := joinTestSession(t, svc, url, nil)
	require.Equal(t, StateJoined, session.State())

	join := <-svc.joins
	require.Equal(t, "room-42", join.Session)
	require.NotEmpty(t, join.Client)
}

func TestJoinRefusedSurfacesError(t *testing.T) {
	svc, url := newCallService(t)
	svc.mu.Lock()
	svc.refuse = "room is full"
	svc.mu.Unlock()

	client := &Client{URL: url, DialTimeout: 2 * time.Second}
	_, err := client.Join(context.Background(), "room-42", nil)
	require.ErrorIs(t, err, ErrJoinFailed)
	require.Contains(t, err.Error(), "room is full")
}

func TestJoinRejectsEmptySession(t *testing.T) {
	client := &Client{URL: "ws://localhost:1"}
	_, err := client.Join(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrJoinFailed)
}

func TestTranscriptionRoundTrip(t *testing.T) {
	svc, url := newCallService(t)
	session := joinTestSession(t, svc, url, nil)

	require.NoError(t, session.StartTranscription(context.Background()))
	start := <-svc.requests
	require.Equal(t, "transcription-start", start.Type)
	require.NotEmpty(t, start.ID)

	require.NoError(t, session.StopTranscription(context.Background()))
	stop := <-svc.requests
	require.Equal(t, "transcription-stop", stop.Type)
}

func TestTranscriptionServiceErrorIsReturned(t *testing.T) {
	svc, url := newCallService(t)
	svc.mu.Lock()
	svc.ackMode = "error"
	svc.mu.Unlock()
	session := joinTestSession(t, svc, url, nil)

	err := session.StartTranscription(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "transcription unavailable")
}

func TestTranscriptionTimesOutWithoutAck(t *testing.T) {
	svc, url := newCallService(t)
	svc.mu.Lock()
	svc.ackMode = "silent"
	svc.mu.Unlock()
	session := joinTestSession(t, svc, url, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := session.StartTranscription(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServerDropReachesLeft(t *testing.T) {
	svc, url := newCallService(t)

	var states []State
	var statesMu sync.Mutex
	session := joinTestSession(t, svc, url, func(state State) {
		statesMu.Lock()
		states = append(states, state)
		statesMu.Unlock()
	})

	conn := <-svc.conns
	require.NoError(t, conn.Close())

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never reached Left")
	}
	require.Equal(t, StateLeft, session.State())

	statesMu.Lock()
	defer statesMu.Unlock()
	require.Equal(t, []State{StateLeft}, states)

	// Left is terminal: control requests fail immediately.
	require.ErrorIs(t, session.StartTranscription(context.Background()), errSessionLeft)
}

func TestLeaveAnnouncesDeparture(t *testing.T) {
	svc, url := newCallService(t)
	session := joinTestSession(t, svc, url, nil)

	session.Leave()
	leave := <-svc.leaves
	require.Equal(t, "leave", leave.Type)

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never reached Left after leave")
	}
}

func TestMessagesDecodeContract(t *testing.T) {
	raw := `{"type":"error","id":"abc","message":"boom"}`
	var msg callServerMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, "error", msg.Type)
	require.Equal(t, "abc", msg.ID)
	require.Equal(t, "boom", msg.Message)
}
