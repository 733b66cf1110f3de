package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIntro

	s, err := Transition(s, EventBegin)
	require.NoError(t, err)
	require.Equal(t, StateQuestion, s)

	s, err = Transition(s, EventListen)
	require.NoError(t, err)
	require.Equal(t, StateListening, s)

	s, err = Transition(s, EventStopListening)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, s)

	s, err = Transition(s, EventScored)
	require.NoError(t, err)
	require.Equal(t, StateFeedback, s)

	s, err = Transition(s, EventNextQuestion)
	require.NoError(t, err)
	require.Equal(t, StateQuestion, s)
}

func TestTransitionFinishFromFeedback(t *testing.T) {
	s, err := Transition(StateFeedback, EventFinish)
	require.NoError(t, err)
	require.Equal(t, StateComplete, s)
}

func TestTransitionTeardownAlwaysLegal(t *testing.T) {
	states := []SessionState{
		StateIntro, StateQuestion, StateListening,
		StateProcessing, StateFeedback, StateComplete,
	}
	for _, state := range states {
		next, err := Transition(state, EventTeardown)
		require.NoError(t, err, "teardown from %s", state)
		require.Equal(t, StateComplete, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state SessionState
		event Event
	}{
		{name: "intro listen", state: StateIntro, event: EventListen},
		{name: "intro scored", state: StateIntro, event: EventScored},
		{name: "question begin", state: StateQuestion, event: EventBegin},
		{name: "question stop", state: StateQuestion, event: EventStopListening},
		{name: "listening listen", state: StateListening, event: EventListen},
		{name: "listening scored", state: StateListening, event: EventScored},
		{name: "processing listen", state: StateProcessing, event: EventListen},
		{name: "processing finish", state: StateProcessing, event: EventFinish},
		{name: "feedback begin", state: StateFeedback, event: EventBegin},
		{name: "complete begin", state: StateComplete, event: EventBegin},
		{name: "complete listen", state: StateComplete, event: EventListen},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Error(t, err)
			require.Equal(t, tc.state, next)
		})
	}
}
