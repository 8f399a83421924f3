package ui

import (
	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/types"
)

// Keymap maps single keystrokes to actions.
type Keymap map[byte]control.Action

const ctrlC = 0x03

var RelayKeys = Keymap{
	'a':   control.ActionToggleAmp,
	't':   control.ActionToggleTRX,
	'1':   control.ActionAntennaPrimary,
	'2':   control.ActionAntennaSecondary,
	'd':   control.ActionDummyLoad,
	'q':   control.ActionQuit,
	ctrlC: control.ActionQuit,
}

var TunerKeys = Keymap{
	's':   control.ActionDecInductance,
	'd':   control.ActionIncInductance,
	'j':   control.ActionDecCapacitance,
	'k':   control.ActionIncCapacitance,
	'n':   control.ActionToggleNetwork,
	'r':   control.ActionReset,
	'q':   control.ActionQuit,
	ctrlC: control.ActionQuit,
}

// KeysFor returns the keymap, title and help line for a device.
func KeysFor(kind types.DeviceKind) (Keymap, string, string) {
	if kind == types.DeviceTuner {
		return TunerKeys, "Remote Tuner", "Inductance(s,d), Capacitance(j,k), Network(n), Reset(r), Quit(q)"
	}
	return RelayKeys, "Shack Control", "Amp(a), TRX(t), Antenna(1/2/d), quit(q)"
}
