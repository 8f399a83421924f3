package labjack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/google/gousb"
)

const (
	VendorID  = 0x0cd5
	ProductID = 0x0001 // U12

	// HID SET_REPORT, output report 0
	hidRequestType = 0x21
	hidSetReport   = 0x09
	hidReportValue = 0x0200

	inEndpoint = 1
)

// usbPort talks to the U12 through libusb. Commands go out as HID output
// reports on the control pipe, replies come from interrupt IN endpoint 1.
type usbPort struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	in   *gousb.InEndpoint
}

// Open öffnet den ersten U12 mit passender VID/PID. If none is attached
// the error matches types.ErrDeviceNotFound.
func Open(vid, pid uint16, writeTimeout time.Duration) (Port, error) {
	uctx := gousb.NewContext()

	dev, err := uctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		uctx.Close()
		return nil, types.NewDeviceError("open", types.ErrDeviceNotFound, err)
	}
	if dev == nil {
		uctx.Close()
		return nil, types.NewDeviceError("open", types.ErrDeviceNotFound,
			fmt.Errorf("no device %04x:%04x", vid, pid))
	}

	// HID Kernel-Treiber abhängen
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		uctx.Close()
		return nil, types.NewDeviceError("open", types.ErrTransport, err)
	}
	dev.ControlTimeout = writeTimeout

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		uctx.Close()
		return nil, types.NewDeviceError("open", types.ErrTransport, err)
	}

	in, err := intf.InEndpoint(inEndpoint)
	if err != nil {
		done()
		dev.Close()
		uctx.Close()
		return nil, types.NewDeviceError("open", types.ErrTransport, err)
	}

	return &usbPort{ctx: uctx, dev: dev, done: done, in: in}, nil
}

func (p *usbPort) Write(b []byte) (int, error) {
	n, err := p.dev.Control(hidRequestType, hidSetReport, hidReportValue, 0, b)
	if err != nil {
		return n, mapUSBError(err)
	}
	return n, nil
}

func (p *usbPort) Read(ctx context.Context, b []byte) (int, error) {
	n, err := p.in.ReadContext(ctx, b)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return n, fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}
		return n, mapUSBError(err)
	}
	return n, nil
}

func (p *usbPort) Close() error {
	p.done()
	err := p.dev.Close()
	if cerr := p.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func mapUSBError(err error) error {
	if errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.TransferTimedOut) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return err
}
