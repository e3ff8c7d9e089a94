// Package call maintains the signaling connection to the video-call
// session. The subtitle layer uses it for call readiness and for the
// best-effort call-level transcription toggle.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrJoinFailed reports that the signaling server refused the join.
var ErrJoinFailed = errors.New("call join failed")

// errSessionLeft fails pending requests when the connection terminates.
var errSessionLeft = errors.New("call session left")

// State is the call membership state. Left is terminal: a left session is
// never rejoined, the owner creates a new one.
type State string

const (
	StateJoining State = "joining"
	StateJoined  State = "joined"
	StateLeft    State = "left"
)

type clientMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Session string `json:"session,omitempty"`
	Client  string `json:"client,omitempty"`
}

type callServerMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client dials the signaling endpoint.
type Client struct {
	URL         string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Session is one joined call. Safe for concurrent use.
type Session struct {
	clientID string
	logger   *slog.Logger
	onState  func(State)

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	state   State
	pending map[string]chan error

	done chan struct{}
}

// Join connects, announces this client, and waits for the join
// acknowledgement. onState observes every later state change; it is
// invoked from the session's read goroutine.
func (c *Client) Join(ctx context.Context, sessionID string, onState func(State)) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrJoinFailed)
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if onState == nil {
		onState = func(State) {}
	}

	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(dialCtx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %q: %v", ErrJoinFailed, c.URL, err)
	}

	session := &Session{
		clientID: uuid.NewString(),
		logger:   logger.With("session", sessionID),
		onState:  onState,
		conn:     conn,
		state:    StateJoining,
		pending:  make(map[string]chan error),
		done:     make(chan struct{}),
	}

	join := clientMessage{Type: "join", Session: sessionID, Client: session.clientID}
	if err := session.write(join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}

	if err := session.awaitJoined(dialCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go session.readLoop()
	return session, nil
}

// awaitJoined consumes messages synchronously until the server confirms or
// refuses the join.
func (s *Session) awaitJoined(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if ok {
		_ = s.conn.SetReadDeadline(deadline)
		defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()
	}

	for {
		var msg callServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("%w: %v", ErrJoinFailed, err)
		}
		switch msg.Type {
		case "joined":
			s.mu.Lock()
			s.state = StateJoined
			s.mu.Unlock()
			return nil
		case "error":
			return fmt.Errorf("%w: %s", ErrJoinFailed, msg.Message)
		default:
			// Presence chatter before the join ack is ignored.
		}
	}
}

// State returns the current membership state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches Left.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StartTranscription asks the call service to run its own transcription
// alongside the local engine.
func (s *Session) StartTranscription(ctx context.Context) error {
	return s.request(ctx, "transcription-start")
}

// StopTranscription turns the call-level transcription off again.
func (s *Session) StopTranscription(ctx context.Context) error {
	return s.request(ctx, "transcription-stop")
}

// Leave announces departure and tears the connection down. Idempotent.
func (s *Session) Leave() {
	s.mu.Lock()
	alreadyLeft := s.state == StateLeft
	s.mu.Unlock()
	if !alreadyLeft {
		_ = s.write(clientMessage{Type: "leave", Client: s.clientID})
	}
	_ = s.conn.Close()
}

// request sends one acknowledged control message and waits for its ack.
func (s *Session) request(ctx context.Context, kind string) error {
	id := uuid.NewString()
	ack := make(chan error, 1)

	s.mu.Lock()
	if s.state != StateJoined {
		s.mu.Unlock()
		return errSessionLeft
	}
	s.pending[id] = ack
	s.mu.Unlock()

	if err := s.write(clientMessage{Type: kind, ID: id, Client: s.clientID}); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Session) write(msg clientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

// readLoop dispatches server messages until the connection dies, then
// marks the session Left exactly once.
func (s *Session) readLoop() {
	defer s.markLeft()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("call connection terminated", "error", err.Error())
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var msg callServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("call message decode failed", "error", err.Error())
			continue
		}

		switch msg.Type {
		case "ack":
			s.resolve(msg.ID, nil)
		case "error":
			if msg.ID != "" {
				s.resolve(msg.ID, errors.New(msg.Message))
				continue
			}
			s.logger.Warn("call service error", "message", msg.Message)
		case "left":
			return
		}
	}
}

func (s *Session) resolve(id string, err error) {
	s.mu.Lock()
	ack, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		ack <- err
	}
}

func (s *Session) markLeft() {
	s.mu.Lock()
	if s.state == StateLeft {
		s.mu.Unlock()
		return
	}
	s.state = StateLeft
	stale := s.pending
	s.pending = make(map[string]chan error)
	s.mu.Unlock()

	_ = s.conn.Close()
	for _, ack := range stale {
		ack <- errSessionLeft
	}
	close(s.done)
	s.onState(StateLeft)
	s.logger.Info("call session left")
}
