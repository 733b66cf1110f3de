package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition wraps every rejected state/event pair.
var ErrInvalidTransition = errors.New("invalid transition")

// SessionState is the orchestrator state for one interview session.
type SessionState string

// Event drives a session from one state to the next.
type Event string

const (
	StateIntro      SessionState = "intro"
	StateQuestion   SessionState = "question"
	StateListening  SessionState = "listening"
	StateProcessing SessionState = "processing"
	StateFeedback   SessionState = "feedback"
	StateComplete   SessionState = "complete"
)

const (
	// EventBegin starts the interview: permissions granted, first question ready.
	EventBegin Event = "begin"
	// EventListen opens a capture for the current question.
	EventListen Event = "listen"
	// EventStopListening finalizes the capture into a user answer.
	EventStopListening Event = "stop_listening"
	// EventScored applies the feedback for the finalized answer.
	EventScored Event = "scored"
	// EventNextQuestion moves from feedback into the next question.
	EventNextQuestion Event = "next_question"
	// EventFinish ends the interview after the final feedback.
	EventFinish Event = "finish"
	// EventTeardown cancels the session; legal from every state.
	EventTeardown Event = "teardown"
)

// Transition applies one event to a state and returns the next state.
// Teardown is unconditionally accepted; everything else follows the matrix.
func Transition(current SessionState, event Event) (SessionState, error) {
	if event == EventTeardown {
		return StateComplete, nil
	}

	switch current {
	case StateIntro:
		if event == EventBegin {
			return StateQuestion, nil
		}
	case StateQuestion:
		if event == EventListen {
			return StateListening, nil
		}
	case StateListening:
		if event == EventStopListening {
			return StateProcessing, nil
		}
	case StateProcessing:
		if event == EventScored {
			return StateFeedback, nil
		}
	case StateFeedback:
		switch event {
		case EventNextQuestion:
			return StateQuestion, nil
		case EventFinish:
			return StateComplete, nil
		}
	case StateComplete:
		// terminal
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	return current, invalidTransition(current, event)
}

func invalidTransition(state SessionState, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, state, event)
}
