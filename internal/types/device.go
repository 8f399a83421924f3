package types

import (
	"fmt"
	"strings"
	"time"
)

// DeviceKind identifies which station peripheral a session drives.
type DeviceKind string

const (
	DeviceRelay DeviceKind = "relay"
	DeviceTuner DeviceKind = "tuner"
)

// RelayState are the four relay flags of the antenna switch. When
// DummyLoad is set the hardware ignores AntennaSecondary, but the bit is
// still sent unchanged.
type RelayState struct {
	Amp              bool `json:"amp"`
	TRX              bool `json:"trx"`
	AntennaSecondary bool `json:"antenna_secondary"`
	DummyLoad        bool `json:"dummy_load"`
}

// Network is the matching network topology of the tuner.
type Network int

const (
	NetworkHiZ Network = iota
	NetworkLoZ
)

func (n Network) String() string {
	if n == NetworkHiZ {
		return "Hi-Z"
	}
	return "Lo-Z"
}

// Toggle returns the other topology.
func (n Network) Toggle() Network {
	if n == NetworkHiZ {
		return NetworkLoZ
	}
	return NetworkHiZ
}

func (n Network) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Network) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "hi-z", "hiz":
		*n = NetworkHiZ
	case "lo-z", "loz":
		*n = NetworkLoZ
	default:
		return fmt.Errorf("unknown network %q", text)
	}
	return nil
}

// Limits for tuner inductance and capacitance steps.
const (
	TunerMinStep = 0
	TunerMaxStep = 127
)

type TunerState struct {
	Inductance  int     `json:"inductance"`
	Capacitance int     `json:"capacitance"`
	Network     Network `json:"network"`
}

// Clamp pulls L and C back into the tuner range.
func (s TunerState) Clamp() TunerState {
	s.Inductance = clampStep(s.Inductance)
	s.Capacitance = clampStep(s.Capacitance)
	return s
}

func clampStep(v int) int {
	if v < TunerMinStep {
		return TunerMinStep
	}
	if v > TunerMaxStep {
		return TunerMaxStep
	}
	return v
}

// PowerReading is one forward/reflected sample. SWR is in hundredths
// (100 == 1.00:1).
type PowerReading struct {
	ForwardRaw     int    `json:"forward_raw"`
	ReflectedRaw   int    `json:"reflected_raw"`
	ForwardWatts   int    `json:"forward_watts"`
	ReflectedWatts int    `json:"reflected_watts"`
	SWR            int    `json:"swr"`
	SWRText        string `json:"swr_text"`
}

// Snapshot is the display-ready view of a session handed to every
// observer (terminal, websocket, MQTT).
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Device    DeviceKind    `json:"device"`
	State     string        `json:"state"`
	Relay     *RelayState   `json:"relay,omitempty"`
	Tuner     *TunerState   `json:"tuner,omitempty"`
	Power     *PowerReading `json:"power,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
