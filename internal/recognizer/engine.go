// Package recognizer abstracts the continuous speech-recognition engine and
// its event stream. The engine is weakly reliable: runs terminate on their
// own and the owner decides whether to start a new run.
package recognizer

import (
	"context"
	"errors"
)

// ErrUnsupported indicates no recognition engine is available in the running
// environment. This is terminal for the owner; no retries follow.
var ErrUnsupported = errors.New("speech recognition is not available in this environment")

// ErrAudioCapture indicates the microphone stream could not be opened for a run.
var ErrAudioCapture = errors.New("audio capture unavailable")

// ErrorCode classifies engine-level failures reported through Failed events.
type ErrorCode string

const (
	CodeNone               ErrorCode = ""
	CodeNoSpeech           ErrorCode = "no-speech"
	CodeAudioCapture       ErrorCode = "audio-capture"
	CodeAborted            ErrorCode = "aborted"
	CodeNotAllowed         ErrorCode = "not-allowed"
	CodeNetwork            ErrorCode = "network"
	CodeServiceUnavailable ErrorCode = "service-unavailable"
)

// Transient reports whether a failure should be recovered by a delayed
// restart rather than waiting for the run-end handler to decide.
func (c ErrorCode) Transient() bool {
	return c == CodeNoSpeech || c == CodeAudioCapture
}

// Event is the closed union of engine notifications, delivered in arrival
// order to the Sink a single owner registers.
type Event interface {
	recognitionEvent()
}

// Started signals the engine accepted the run and is listening.
type Started struct{}

// Result carries the transcript segments of one recognition update. Finals
// and Interims are each complete for the current utterance window; the
// display layer replaces its text wholesale rather than appending.
type Result struct {
	Interims []string
	Finals   []string
}

// Failed signals an engine-level error. A trailing Ended follows once the
// run fully terminates.
type Failed struct {
	Code    ErrorCode
	Message string
}

// Ended signals the run terminated, cleanly or otherwise.
type Ended struct{}

func (Started) recognitionEvent() {}
func (Result) recognitionEvent()  {}
func (Failed) recognitionEvent()  {}
func (Ended) recognitionEvent()   {}

// Sink consumes engine events. Implementations must be safe for calls from
// the engine's internal goroutines.
type Sink func(Event)

// Engine is one reusable recognition session. Start/Stop bracket individual
// runs; language changes apply to the next run.
type Engine interface {
	Start(ctx context.Context) error
	Stop()
	SetLanguage(code string)
	Language() string
	Close() error
}

// StartErrorCode maps a Start failure onto the event error taxonomy.
func StartErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrUnsupported):
		return CodeServiceUnavailable
	case errors.Is(err, ErrAudioCapture):
		return CodeAudioCapture
	default:
		return CodeNetwork
	}
}
