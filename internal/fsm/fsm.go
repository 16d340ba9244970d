// Package fsm defines the run lifecycle states of a subtitle session.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateError    State = "error"
)

const (
	EventStart   Event = "start"
	EventStop    Event = "stop"
	EventDrained Event = "drained"
	EventFail    Event = "fail"
	EventReset   Event = "reset"
)

// edges holds the single legal exit from each state. EventFail is accepted
// everywhere and handled separately.
var edges = map[State]struct {
	on   Event
	next State
}{
	StateIdle:     {on: EventStart, next: StateRunning},
	StateRunning:  {on: EventStop, next: StateDraining},
	StateDraining: {on: EventDrained, next: StateIdle},
	StateError:    {on: EventReset, next: StateIdle},
}

// Transition returns the state reached from current on event. On error the
// returned state equals current.
func Transition(current State, event Event) (State, error) {
	edge, known := edges[current]
	if !known {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}
	if event != edge.on {
		return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
	}
	return edge.next, nil
}
