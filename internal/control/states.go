package control

import (
	"fmt"
	"strings"
)

// Action is a discrete operator command.
type Action string

const (
	// relay
	ActionToggleAmp        Action = "toggle_amp"
	ActionToggleTRX        Action = "toggle_trx"
	ActionAntennaPrimary   Action = "antenna_primary"
	ActionAntennaSecondary Action = "antenna_secondary"
	ActionDummyLoad        Action = "dummy_load"

	// tuner
	ActionIncInductance  Action = "inc_inductance"
	ActionDecInductance  Action = "dec_inductance"
	ActionIncCapacitance Action = "inc_capacitance"
	ActionDecCapacitance Action = "dec_capacitance"
	ActionToggleNetwork  Action = "toggle_network"
	ActionReset          Action = "reset"

	// beide
	ActionRefresh Action = "refresh"
	ActionQuit    Action = "quit"
)

var (
	RelayActions = []Action{
		ActionToggleAmp, ActionToggleTRX, ActionAntennaPrimary,
		ActionAntennaSecondary, ActionDummyLoad, ActionRefresh, ActionQuit,
	}
	TunerActions = []Action{
		ActionIncInductance, ActionDecInductance, ActionIncCapacitance,
		ActionDecCapacitance, ActionToggleNetwork, ActionReset, ActionRefresh, ActionQuit,
	}
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RelayActions {
		if a == known {
			return a, nil
		}
	}
	for _, known := range TunerActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

func supports(list []Action, a Action) bool {
	for _, known := range list {
		if known == a {
			return true
		}
	}
	return false
}
