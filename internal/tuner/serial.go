package tuner

import (
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
	"go.bug.st/serial"
)

const (
	DefaultDevice   = "/dev/ttyACM0"
	DefaultBaudRate = 9600
)

// OpenSerial öffnet den Tuner-Port mit 8N1. readPoll is how long a single
// Read waits before returning (0, nil); it is what ends the drain after
// the last byte of an answer.
func OpenSerial(path string, baudRate int, readPoll time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, types.NewDeviceError("open", types.ErrDeviceNotFound, fmt.Errorf("%s: %w", path, err))
		}
		return nil, types.NewDeviceError("open", types.ErrTransport, fmt.Errorf("%s: %w", path, err))
	}

	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, types.NewDeviceError("open", types.ErrTransport, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, types.NewDeviceError("open", types.ErrTransport, err)
	}

	return port, nil
}
