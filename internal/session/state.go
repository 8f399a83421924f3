package session

import "fmt"

type State int

const (
	StateStarting State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

func ValidateTransition(from, to State) error {
	validTransitions := map[State][]State{
		StateStarting: {StateReady, StateFailed, StateClosed},
		StateReady:    {StateFailed, StateClosed},
		StateFailed:   {StateClosed},
		StateClosed:   {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}
