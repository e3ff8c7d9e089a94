package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Source provides the PCM audio feed for one recognition run.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// WSConfig controls the websocket engine transport and audio framing.
type WSConfig struct {
	URL         string
	Language    string
	SampleRate  int
	ChunkBytes  int
	DialTimeout time.Duration
	Source      Source
	Logger      *slog.Logger
}

// WSEngine streams microphone audio to a recognition service over one
// websocket connection per run. The engine value itself is reused across
// runs; language changes apply to the next run.
type WSEngine struct {
	cfg  WSConfig
	sink Sink

	mu       sync.Mutex
	language string
	starting bool
	closed   bool
	run      *wsRun
}

type wsRun struct {
	conn   *websocket.Conn
	source io.ReadCloser

	writeMu sync.Mutex
	done    chan struct{}
}

type startMessage struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	Language       string `json:"language"`
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	InterimResults bool   `json:"interim_results"`
}

type controlMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type    string         `json:"type"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Results []serverResult `json:"results,omitempty"`
}

type serverResult struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

// NewWS builds a websocket engine. An empty endpoint means recognition is
// unavailable in this deployment and is reported as ErrUnsupported.
func NewWS(cfg WSConfig, sink Sink) (*WSEngine, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrUnsupported
	}
	if sink == nil {
		return nil, fmt.Errorf("recognizer sink is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("recognizer audio source is required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 3200 // 100ms @ 16kHz mono s16
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en-US"
	}
	return &WSEngine{cfg: cfg, sink: sink, language: language}, nil
}

// SetLanguage assigns the language used by the next run. A running session
// cannot hot-swap language; the owner stops and restarts instead.
func (e *WSEngine) SetLanguage(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	e.mu.Lock()
	e.language = code
	e.mu.Unlock()
}

// Language returns the language the next run will use.
func (e *WSEngine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// Start dials the recognition service and begins one run. Events flow to the
// sink from the run's own goroutines until Ended.
func (e *WSEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("recognizer is closed")
	}
	if e.run != nil || e.starting {
		e.mu.Unlock()
		return fmt.Errorf("recognition run already in progress")
	}
	e.starting = true
	language := e.language
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
	}()

	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, e.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial recognizer %q: %w", e.cfg.URL, err)
	}

	start := startMessage{
		Type:           "start",
		ID:             uuid.NewString(),
		Language:       language,
		SampleRate:     e.cfg.SampleRate,
		Encoding:       "pcm_s16le",
		InterimResults: true,
	}
	if err := conn.WriteJSON(start); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send recognition config: %w", err)
	}

	source, err := e.cfg.Source.Open(ctx)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrAudioCapture, err)
	}

	run := &wsRun{conn: conn, source: source, done: make(chan struct{})}
	e.mu.Lock()
	e.run = run
	e.mu.Unlock()

	go e.readLoop(run)
	go e.pumpLoop(run)
	return nil
}

// Stop ends the active run. The trailing Ended event still arrives through
// the sink once the run drains.
func (e *WSEngine) Stop() {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run == nil {
		return
	}

	run.writeMu.Lock()
	_ = run.conn.WriteJSON(controlMessage{Type: "stop"})
	run.writeMu.Unlock()
	_ = run.source.Close()

	// Force the connection down if the service never acknowledges the stop.
	go func() {
		select {
		case <-run.done:
		case <-time.After(2 * time.Second):
			_ = run.conn.Close()
		}
	}()
}

// Close disposes the engine. Further Start calls fail.
func (e *WSEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.Stop()
	return nil
}

// readLoop consumes service messages until the run terminates, then emits
// the single Ended event for the run.
func (e *WSEngine) readLoop(run *wsRun) {
	defer func() {
		_ = run.source.Close()
		_ = run.conn.Close()
		e.mu.Lock()
		if e.run == run {
			e.run = nil
		}
		e.mu.Unlock()
		close(run.done)
		e.sink(Ended{})
	}()

	for {
		kind, data, err := run.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logDebug("recognizer connection terminated", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logDebug("recognizer message decode failed", err)
			continue
		}

		switch msg.Type {
		case "ready":
			e.sink(Started{})
		case "transcript":
			e.sink(splitResults(msg.Results))
		case "error":
			e.sink(Failed{Code: ErrorCode(msg.Code), Message: msg.Message})
		case "end":
			return
		}
	}
}

// pumpLoop streams PCM chunks from the source until it drains or the
// connection dies.
func (e *WSEngine) pumpLoop(run *wsRun) {
	buf := make([]byte, e.cfg.ChunkBytes)
	for {
		n, readErr := run.source.Read(buf)
		if n > 0 {
			run.writeMu.Lock()
			writeErr := run.conn.WriteMessage(websocket.BinaryMessage, buf[:n])
			run.writeMu.Unlock()
			if writeErr != nil {
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}

// splitResults partitions one update into final and interim segment lists.
func splitResults(results []serverResult) Result {
	var out Result
	for _, r := range results {
		text := strings.TrimSpace(r.Transcript)
		if text == "" {
			continue
		}
		if r.IsFinal {
			out.Finals = append(out.Finals, text)
			continue
		}
		out.Interims = append(out.Interims, text)
	}
	return out
}

func (e *WSEngine) logDebug(message string, err error) {
	if e.cfg.Logger == nil || err == nil {
		return
	}
	e.cfg.Logger.Debug(message, "error", err.Error())
}
