// Package subtitle coordinates the live-subtitle lifecycle for one call:
// it owns the recognition engine, reconciles it against user and environment
// signals, and maintains the text the hosting UI renders.
package subtitle

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"undertone/internal/fsm"
	"undertone/internal/observe"
	"undertone/internal/recognizer"
)

const defaultPlaceholder = "Listening…"

// Delays are the restart backoff windows for the three recovery paths.
type Delays struct {
	// Error is applied after a transient engine error (no-speech, audio-capture).
	Error time.Duration
	// End is applied after an unexpected run end while still eligible.
	End time.Duration
	// Language is applied after an in-flight language change.
	Language time.Duration
}

// DefaultDelays returns the production restart windows.
func DefaultDelays() Delays {
	return Delays{
		Error:    1500 * time.Millisecond,
		End:      1200 * time.Millisecond,
		Language: 500 * time.Millisecond,
	}
}

// MicProber requests microphone access. Request is idempotent: once granted
// it returns immediately on later calls.
type MicProber interface {
	Request(ctx context.Context) error
}

// Notifier surfaces user-facing subtitle problems (toasts).
type Notifier interface {
	Notify(ctx context.Context, title string, body string)
}

// Transcription is the call-session side channel started alongside the local
// engine. It is best-effort and never authoritative for displayed text.
type Transcription interface {
	StartTranscription(ctx context.Context) error
	StopTranscription(ctx context.Context) error
}

type noopProber struct{}

func (noopProber) Request(context.Context) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string) {}

// Options configures controller construction.
type Options struct {
	Logger      *slog.Logger
	Mic         MicProber
	Notifier    Notifier
	Metrics     *observe.Metrics
	Language    string
	Languages   []string
	Placeholder string
	Delays      Delays
}

// Controller is the single owner of the recognition session. All engine
// access goes through it; external signals arrive through the Set* methods
// and engine events through HandleEvent.
type Controller struct {
	logger   *slog.Logger
	mic      MicProber
	notifier Notifier
	metrics  *observe.Metrics
	delays   Delays

	placeholder string
	languages   []string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	engine  recognizer.Engine
	session Transcription

	state        fsm.State
	enabled      bool
	callReady    bool
	micReady     bool
	hasMicDevice bool
	visible      bool
	language     string

	active       bool
	liveRuns     int
	startPending bool
	lastErr      recognizer.ErrorCode
	text         string

	unsupported bool
	noMicShown  bool
	closed      bool

	restartTimer *time.Timer
	restartGen   uint64
}

// NewController constructs a controller with safe fallbacks for absent
// collaborators. The engine is attached separately because it needs the
// controller's event sink at its own construction time.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Mic == nil {
		opts.Mic = noopProber{}
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Delays == (Delays{}) {
		opts.Delays = DefaultDelays()
	}
	if strings.TrimSpace(opts.Placeholder) == "" {
		opts.Placeholder = defaultPlaceholder
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = "en-US"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:       opts.Logger,
		mic:          opts.Mic,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		delays:       opts.Delays,
		placeholder:  opts.Placeholder,
		languages:    slices.Clone(opts.Languages),
		ctx:          ctx,
		cancel:       cancel,
		state:        fsm.StateIdle,
		language:     language,
		visible:      true,
		hasMicDevice: true,
	}
}

// AttachEngine hands the controller its recognition session. Passing nil
// marks recognition as unsupported for the controller lifetime.
func (c *Controller) AttachEngine(engine recognizer.Engine) {
	c.mu.Lock()
	if engine == nil {
		c.mu.Unlock()
		c.MarkUnsupported()
		return
	}
	c.engine = engine
	engine.SetLanguage(c.language)
	c.reconcileLocked()
	c.mu.Unlock()
}

// BindSession wires the call-session transcription side channel.
func (c *Controller) BindSession(session Transcription) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

// MarkUnsupported records that no recognition engine exists in this
// environment. Reported once; subtitles stay unavailable with no retries.
func (c *Controller) MarkUnsupported() {
	c.mu.Lock()
	if c.unsupported || c.closed {
		c.mu.Unlock()
		return
	}
	c.unsupported = true
	c.text = ""
	c.cancelRestartLocked()
	c.mu.Unlock()

	c.logger.Warn("speech recognition unsupported; subtitles disabled")
	c.notifyAsync("Subtitles unavailable", "Speech recognition is not supported in this environment")
}

// SetEnabled applies the user subtitle toggle. Disabling clears the subtitle
// text immediately, regardless of engine state.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	if c.enabled == enabled || c.closed {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	if !enabled {
		c.text = ""
	}
	c.reconcileLocked()
	c.mu.Unlock()
}

// SetCallReady records whether the external call session has joined.
func (c *Controller) SetCallReady(ready bool) {
	c.mu.Lock()
	if c.callReady == ready || c.closed {
		c.mu.Unlock()
		return
	}
	c.callReady = ready
	c.reconcileLocked()
	c.mu.Unlock()
}

// SetVisible applies the tab/window visibility signal. Losing visibility
// always wins: the engine stops immediately and nothing is rescheduled until
// visibility returns.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	if c.visible == visible || c.closed {
		c.mu.Unlock()
		return
	}
	c.visible = visible
	c.reconcileLocked()
	c.mu.Unlock()
}

// SetMicDevice records the microphone-presence result of a device scan.
func (c *Controller) SetMicDevice(present bool) {
	c.mu.Lock()
	if c.hasMicDevice == present || c.closed {
		c.mu.Unlock()
		return
	}
	c.hasMicDevice = present
	c.reconcileLocked()
	c.mu.Unlock()
}

// SetLanguage selects the recognition language. A running session cannot
// hot-swap language, so an active run is stopped and restarted shortly after,
// regardless of error state. While inactive only the stored value changes.
func (c *Controller) SetLanguage(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errUnknownLanguage(code)
	}
	if len(c.languages) > 0 && !slices.Contains(c.languages, code) {
		return errUnknownLanguage(code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || code == c.language {
		c.language = code
		return nil
	}

	c.language = code
	if c.engine != nil {
		c.engine.SetLanguage(code)
	}

	if c.active || c.startPending || c.state == fsm.StateStarting {
		// Suppress the restart the trailing end event would schedule; the
		// language timer below is the single restart for this change. A run
		// whose start is still being confirmed counts as in flight.
		c.lastErr = recognizer.CodeAborted
		c.engine.Stop()
		c.applyLocked(fsm.EventStop)
		c.scheduleRestartLocked(c.delays.Language)
	}
	return nil
}

// Text returns the subtitle line the UI should render.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Status is a point-in-time controller snapshot for the control surface.
type Status struct {
	State        fsm.State
	Enabled      bool
	Visible      bool
	CallReady    bool
	MicReady     bool
	HasMicDevice bool
	Active       bool
	Unsupported  bool
	Language     string
	LastError    recognizer.ErrorCode
	Text         string
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:        c.state,
		Enabled:      c.enabled,
		Visible:      c.visible,
		CallReady:    c.callReady,
		MicReady:     c.micReady,
		HasMicDevice: c.hasMicDevice,
		Active:       c.active,
		Unsupported:  c.unsupported,
		Language:     c.language,
		LastError:    c.lastErr,
		Text:         c.text,
	}
}

// Close tears the controller down unconditionally: pending restart cancelled,
// active engine stopped, session disposed. Not guarded by eligibility.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelRestartLocked()
	c.lastErr = recognizer.CodeAborted
	c.applyLocked(fsm.EventStop)
	engine := c.engine
	c.mu.Unlock()

	c.cancel()
	if engine != nil {
		engine.Stop()
		_ = engine.Close()
	}
}

// reconcileLocked converges the engine toward the eligibility conjunction
// after any signal change.
func (c *Controller) reconcileLocked() {
	if c.closed || c.unsupported {
		return
	}

	// "No microphone found" fires once per transition into the blocked state,
	// not on every re-evaluation while it persists.
	blockedOnDevice := c.enabled && c.callReady && c.visible && !c.hasMicDevice
	if blockedOnDevice && !c.noMicShown {
		c.noMicShown = true
		c.notifyAsync("Subtitles", "No microphone found")
	}
	if !blockedOnDevice {
		c.noMicShown = false
	}

	shouldRun := c.shouldRunLocked()
	switch {
	case shouldRun && !c.active && !c.startPending && c.restartTimer == nil:
		c.startLocked()
	case !shouldRun && (c.active || c.startPending):
		c.stopLocked()
	case !shouldRun:
		c.cancelRestartLocked()
		c.applyLocked(fsm.EventStop)
	}
}

// shouldRunLocked is the eligibility conjunction, minus microphone
// permission: permission is acquired as the first step of the start path.
func (c *Controller) shouldRunLocked() bool {
	return c.enabled && c.callReady && c.hasMicDevice && c.visible
}

// eligibleLocked additionally requires the microphone stream to have been
// obtained at least once; restart decisions use this form.
func (c *Controller) eligibleLocked() bool {
	return c.shouldRunLocked() && c.micReady
}

// startLocked begins the asynchronous permission-then-start sequence.
func (c *Controller) startLocked() {
	if c.engine == nil {
		return
	}
	c.startPending = true
	c.applyLocked(fsm.EventStart)
	needPermission := !c.micReady
	go c.startRun(needPermission)
}

// startRun runs off the signal path: the permission request may suspend on a
// user prompt and the engine dial may block, while other signal processing
// continues independently.
func (c *Controller) startRun(needPermission bool) {
	if needPermission {
		if err := c.mic.Request(c.ctx); err != nil {
			c.mu.Lock()
			c.startPending = false
			c.lastErr = recognizer.CodeNotAllowed
			c.applyLocked(fsm.EventStop)
			c.mu.Unlock()
			c.logger.Warn("microphone permission denied", "error", err.Error())
			c.notifyAsync("Subtitles", "Microphone access was denied")
			return
		}
		c.mu.Lock()
		c.micReady = true
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.closed || c.active || !c.shouldRunLocked() {
		// Signals moved on while we were suspended.
		c.startPending = false
		c.applyLocked(fsm.EventStop)
		c.mu.Unlock()
		return
	}
	c.lastErr = recognizer.CodeNone
	engine := c.engine
	c.mu.Unlock()

	err := engine.Start(c.ctx)

	c.mu.Lock()
	c.startPending = false
	if err == nil {
		if c.closed || !c.shouldRunLocked() || c.lastErr == recognizer.CodeAborted || c.restartTimer != nil {
			// A stop or restart request raced the dial; the abort marker keeps
			// the trailing end event quiet.
			c.lastErr = recognizer.CodeAborted
			c.mu.Unlock()
			engine.Stop()
			return
		}
		c.mu.Unlock()
		return
	}

	if recognizer.StartErrorCode(err) == recognizer.CodeServiceUnavailable {
		c.applyLocked(fsm.EventStop)
		c.mu.Unlock()
		c.MarkUnsupported()
		return
	}

	code := recognizer.StartErrorCode(err)
	c.lastErr = code
	c.applyLocked(fsm.EventFail)
	c.countError(code)
	if c.eligibleLocked() {
		c.scheduleRestartLocked(c.delays.End)
	} else {
		c.applyLocked(fsm.EventStop)
	}
	c.mu.Unlock()
	c.logger.Error("recognition start failed", "error", err.Error(), "code", string(code))
}

// stopLocked performs a deliberate, eligibility-driven stop. The abort marker
// keeps the trailing end event from resurrecting the engine.
func (c *Controller) stopLocked() {
	c.cancelRestartLocked()
	c.lastErr = recognizer.CodeAborted
	c.applyLocked(fsm.EventStop)
	if c.engine != nil {
		c.engine.Stop()
	}
	c.stopTranscription(c.session)
}

// scheduleRestartLocked arms the single pending-restart slot. Scheduling
// replaces any previous pending timer.
func (c *Controller) scheduleRestartLocked(delay time.Duration) {
	c.cancelRestartLocked()
	c.applyLocked(fsm.EventSchedule)
	c.restartGen++
	gen := c.restartGen
	c.restartTimer = time.AfterFunc(delay, func() { c.fireRestart(gen) })
	if c.metrics != nil {
		c.metrics.RestartScheduled(c.ctx)
	}
}

// cancelRestartLocked disarms the pending-restart slot.
func (c *Controller) cancelRestartLocked() {
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	c.restartGen++
}

// fireRestart is the timer body. Restarts are idempotent: an engine that is
// already running again makes the fire a no-op.
func (c *Controller) fireRestart(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.restartGen {
		return
	}
	c.restartTimer = nil
	if c.active || c.startPending {
		return
	}
	if !c.shouldRunLocked() {
		c.applyLocked(fsm.EventStop)
		return
	}
	c.startLocked()
}

// applyLocked advances the lifecycle machine, logging rather than failing on
// an event the current state does not expect.
func (c *Controller) applyLocked(event fsm.Event) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Debug("lifecycle event ignored", "state", string(c.state), "event", string(event))
		return
	}
	c.state = next
}

func (c *Controller) notifyAsync(title string, body string) {
	go c.notifier.Notify(c.ctx, title, body)
}

func (c *Controller) countError(code recognizer.ErrorCode) {
	if c.metrics != nil {
		c.metrics.EngineError(c.ctx, string(code))
	}
}
