package subtitle

import (
	"context"
	"fmt"
	"time"

	"undertone/internal/fsm"
	"undertone/internal/recognizer"
	"undertone/internal/transcript"
)

const transcriptionTimeout = 2 * time.Second

func errUnknownLanguage(code string) error {
	return fmt.Errorf("unsupported subtitle language %q", code)
}

// HandleEvent is the engine event sink. Events are applied in arrival order;
// pass it to the engine constructor as its Sink.
func (c *Controller) HandleEvent(event recognizer.Event) {
	switch ev := event.(type) {
	case recognizer.Started:
		c.handleStarted()
	case recognizer.Result:
		c.handleResult(ev)
	case recognizer.Failed:
		c.handleFailed(ev)
	case recognizer.Ended:
		c.handleEnded()
	default:
		c.logger.Debug("unknown recognition event", "event", fmt.Sprintf("%T", event))
	}
}

func (c *Controller) handleStarted() {
	c.mu.Lock()
	c.active = true
	c.liveRuns++
	c.startPending = false
	c.applyLocked(fsm.EventStarted)

	// The start handshake is not atomic: a stop or a restart request may have
	// landed between the dial and this confirmation, while the engine's Stop
	// was still a no-op. Enforce it now instead of letting the run survive.
	if c.closed || !c.shouldRunLocked() || c.lastErr == recognizer.CodeAborted || c.restartTimer != nil {
		c.lastErr = recognizer.CodeAborted
		c.applyLocked(fsm.EventStop)
		if c.restartTimer != nil {
			c.applyLocked(fsm.EventSchedule)
		}
		if c.engine != nil {
			c.engine.Stop()
		}
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.EngineUp(c.ctx)
		}
		c.logger.Info("recognition run superseded during start")
		return
	}

	if c.enabled {
		c.text = c.placeholder
	}
	session := c.session
	language := c.language
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.EngineUp(c.ctx)
	}
	c.startTranscription(session)
	c.logger.Info("recognition active", "language", language)
}

func (c *Controller) handleResult(ev recognizer.Result) {
	c.mu.Lock()
	if c.enabled {
		// Each event is self-contained for the current utterance window:
		// finals win, otherwise the interim line replaces the previous one.
		switch {
		case len(ev.Finals) > 0:
			c.text = transcript.Join(ev.Finals)
		case len(ev.Interims) > 0:
			c.text = transcript.Join(ev.Interims)
		}
	}
	c.mu.Unlock()

	if c.metrics != nil && len(ev.Finals) > 0 {
		c.metrics.FinalSegments(c.ctx, int64(len(ev.Finals)))
	}
}

func (c *Controller) handleFailed(ev recognizer.Failed) {
	c.mu.Lock()
	c.lastErr = ev.Code
	c.applyLocked(fsm.EventFail)
	restart := ev.Code.Transient() && c.eligibleLocked()
	if restart {
		if c.engine != nil {
			c.engine.Stop()
		}
		c.scheduleRestartLocked(c.delays.Error)
	}
	c.mu.Unlock()

	c.countError(ev.Code)
	c.logger.Warn("recognition error",
		"code", string(ev.Code),
		"message", ev.Message,
		"restart", restart,
	)
}

func (c *Controller) handleEnded() {
	c.mu.Lock()
	if c.liveRuns > 0 {
		c.liveRuns--
	}
	if c.liveRuns > 0 {
		// Stale end of an older run arriving after its replacement started.
		c.mu.Unlock()
		return
	}
	wasActive := c.active
	c.active = false
	c.applyLocked(fsm.EventEnd)

	switch {
	case c.closed:
	case c.restartTimer != nil:
		// A restart is already pending (error or language path); the trailing
		// end must not reset its clock.
	case c.lastErr == recognizer.CodeAborted:
		// Explicit stop: never resurrect from the end event. If eligibility
		// has already returned, converge through the normal path instead.
		c.reconcileLocked()
	case c.eligibleLocked():
		c.scheduleRestartLocked(c.delays.End)
	}
	session := c.session
	c.mu.Unlock()

	if wasActive {
		if c.metrics != nil {
			c.metrics.EngineDown(c.ctx)
		}
		c.stopTranscription(session)
	}
}

// startTranscription starts the call-level transcription feature in
// parallel with the local engine. Best-effort: failures are logged only.
func (c *Controller) startTranscription(session Transcription) {
	if session == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, transcriptionTimeout)
		defer cancel()
		if err := session.StartTranscription(ctx); err != nil {
			c.logger.Warn("call transcription start failed", "error", err.Error())
		}
	}()
}

func (c *Controller) stopTranscription(session Transcription) {
	if session == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, transcriptionTimeout)
		defer cancel()
		if err := session.StopTranscription(ctx); err != nil {
			c.logger.Warn("call transcription stop failed", "error", err.Error())
		}
	}()
}
