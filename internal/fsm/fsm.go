// Package fsm defines the recognition-session lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	// StateIdle means no recognition run is in progress or pending.
	StateIdle State = "idle"
	// StateStarting means a run was requested but the engine has not reported
	// start yet (permission prompt, dial, handshake).
	StateStarting State = "starting"
	// StateActive means the engine is live and emitting results.
	StateActive State = "active"
	// StateErrorPending means the engine reported an error and its trailing
	// end event has not arrived yet.
	StateErrorPending State = "error-pending"
	// StateRestarting means a delayed restart is scheduled.
	StateRestarting State = "restarting"
)

const (
	EventStart    Event = "start"
	EventStarted  Event = "started"
	EventFail     Event = "fail"
	EventEnd      Event = "end"
	EventSchedule Event = "schedule"
	EventStop     Event = "stop"
)

// Transition applies one lifecycle event. EventStop is the deliberate
// eligibility-driven stop and is accepted from every state.
func Transition(current State, event Event) (State, error) {
	if event == EventStop {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		case EventSchedule:
			return StateRestarting, nil
		case EventEnd:
			// Stale end arriving after a completed stop.
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventStarted:
			return StateActive, nil
		case EventFail:
			return StateErrorPending, nil
		case EventEnd:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventFail:
			return StateErrorPending, nil
		case EventEnd:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateErrorPending:
		switch event {
		case EventSchedule:
			return StateRestarting, nil
		case EventEnd:
			return StateIdle, nil
		case EventFail:
			return StateErrorPending, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRestarting:
		switch event {
		case EventStart:
			return StateStarting, nil
		case EventSchedule, EventEnd, EventFail:
			// The run that triggered the restart may still be draining events,
			// and a newer schedule replaces the pending one.
			return StateRestarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
