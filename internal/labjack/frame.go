package labjack

import (
	"fmt"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// Alle U12 Kommandos sind 8 Bytes lang
const FrameLength = 8

const (
	ModeDIO      = 0x57 // 0b01x10111, digital I/O read/write
	ValueOffset  = 4
	ModeOffset   = 5
	CommitOffset = 6
	StatusOffset = 3 // readback IO0-IO3 in den oberen 4 Bits
)

// Relay bits on IO0-IO3
const (
	BitAmp = 1 << iota
	BitTRX
	BitAntenna
	BitDummy
)

// Frame is an outbound U12 command.
type Frame [FrameLength]byte

// Reply is the 8-byte U12 answer to a Frame.
type Reply [FrameLength]byte

// BuildFrame erstellt ein DIO Frame. commit=false ist ein reiner Lesezugriff,
// value wird trotzdem mitgeschickt.
func BuildFrame(value byte, commit bool) Frame {
	var f Frame
	// Bytes 0-3: D15-D0 Richtung und Zustand, bleiben 0
	f[ValueOffset] = value
	f[ModeOffset] = ModeDIO
	if commit {
		f[CommitOffset] = 1
	}
	return f
}

// Value returns the packed relay byte carried by the frame.
func (f Frame) Value() byte {
	return f[ValueOffset]
}

// Commit reports whether the frame updates the outputs.
func (f Frame) Commit() bool {
	return f[CommitOffset] == 1
}

// Status returns the readback status byte.
func (r Reply) Status() byte {
	return r[StatusOffset]
}

// EncodeState packt den Relay-Zustand in die unteren 4 Bits.
func EncodeState(s types.RelayState) byte {
	var v byte
	if s.Amp {
		v |= BitAmp
	}
	if s.TRX {
		v |= BitTRX
	}
	if s.AntennaSecondary {
		v |= BitAntenna
	}
	if s.DummyLoad {
		v |= BitDummy
	}
	return v & 0x0F
}

// DecodeStatus liest den Zustand aus dem Readback-Byte. Das Gerät liefert
// IO0-IO3 um 4 Bit verschoben zurück.
func DecodeStatus(status byte) types.RelayState {
	v := status >> 4
	return types.RelayState{
		Amp:              v&BitAmp != 0,
		TRX:              v&BitTRX != 0,
		AntennaSecondary: v&BitAntenna != 0,
		DummyLoad:        v&BitDummy != 0,
	}
}

// DecodeReply validates the reply length and decodes the status byte.
func DecodeReply(data []byte) (Reply, error) {
	var r Reply
	if len(data) != FrameLength {
		return r, fmt.Errorf("reply length %d, expected %d", len(data), FrameLength)
	}
	copy(r[:], data)
	return r, nil
}

func (f Frame) String() string {
	return fmt.Sprintf("% X", f[:])
}
