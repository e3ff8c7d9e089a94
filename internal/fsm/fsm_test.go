package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionCleanRun(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventStarted)
	require.NoError(t, err)
	require.Equal(t, StateActive, next)

	next, err = Transition(next, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionTransientErrorRestartCycle(t *testing.T) {
	next, err := Transition(StateActive, EventFail)
	require.NoError(t, err)
	require.Equal(t, StateErrorPending, next)

	next, err = Transition(next, EventSchedule)
	require.NoError(t, err)
	require.Equal(t, StateRestarting, next)

	// Trailing end from the failed run is absorbed.
	next, err = Transition(next, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateRestarting, next)

	next, err = Transition(next, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)
}

func TestTransitionUnexpectedEndRestartCycle(t *testing.T) {
	next, err := Transition(StateActive, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)

	next, err = Transition(next, EventSchedule)
	require.NoError(t, err)
	require.Equal(t, StateRestarting, next)

	next, err = Transition(next, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)
}

func TestTransitionStopFromAnyStateGoesIdle(t *testing.T) {
	states := []State{StateIdle, StateStarting, StateActive, StateErrorPending, StateRestarting}
	for _, state := range states {
		next, err := Transition(state, EventStop)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle started invalid", state: StateIdle, event: EventStarted, want: StateIdle, wantErr: true},
		{name: "idle fail invalid", state: StateIdle, event: EventFail, want: StateIdle, wantErr: true},
		{name: "idle stale end absorbed", state: StateIdle, event: EventEnd, want: StateIdle, wantErr: false},
		{name: "starting start invalid", state: StateStarting, event: EventStart, want: StateStarting, wantErr: true},
		{name: "starting schedule invalid", state: StateStarting, event: EventSchedule, want: StateStarting, wantErr: true},
		{name: "active start invalid", state: StateActive, event: EventStart, want: StateActive, wantErr: true},
		{name: "active started invalid", state: StateActive, event: EventStarted, want: StateActive, wantErr: true},
		{name: "error-pending start invalid", state: StateErrorPending, event: EventStart, want: StateErrorPending, wantErr: true},
		{name: "error-pending repeat fail absorbed", state: StateErrorPending, event: EventFail, want: StateErrorPending, wantErr: false},
		{name: "restarting started invalid", state: StateRestarting, event: EventStarted, want: StateRestarting, wantErr: true},
		{name: "restarting reschedule absorbed", state: StateRestarting, event: EventSchedule, want: StateRestarting, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	_, err := Transition(State("bogus"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
}
