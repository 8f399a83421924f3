package tuner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// Port is the serial byte stream to the tuner. Read may return fewer
// bytes than asked for, and (0, nil) when nothing arrived within the
// port's read poll.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// inputFlusher is implemented by ports that can drop stale input.
type inputFlusher interface {
	ResetInputBuffer() error
}

type Client struct {
	port            Port
	layout          Layout
	responseTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewClient wraps a serial port. A responseTimeout of 0 waits for the
// answer without limit.
func NewClient(port Port, layout Layout, responseTimeout time.Duration) *Client {
	return &Client{
		port:            port,
		layout:          layout,
		responseTimeout: responseTimeout,
	}
}

// Layout returns the response layout in use.
func (c *Client) Layout() Layout {
	return c.layout
}

// ReadStatus liest die aktuelle Einstellung.
func (c *Client) ReadStatus(ctx context.Context) (types.TunerState, error) {
	buf, err := c.roundTrip(ctx, "read status", BuildCommand(CmdRead))
	if err != nil {
		return types.TunerState{}, err
	}
	s, err := ParseStatus(buf, c.layout)
	if err != nil {
		return types.TunerState{}, withOp("read status", err)
	}
	return s, nil
}

// ReadPower returns the raw forward and reflected counts.
func (c *Client) ReadPower(ctx context.Context) (fwd, ref int, err error) {
	buf, err := c.roundTrip(ctx, "read power", BuildCommand(CmdPower))
	if err != nil {
		return 0, 0, err
	}
	fwd, ref, err = ParsePower(buf, c.layout)
	if err != nil {
		return 0, 0, withOp("read power", err)
	}
	return fwd, ref, nil
}

// Apply sends a new setting and returns what the tuner echoed back.
// A bare "ok" without a status carries no echo; then echoed is false
// and s is returned unchanged.
func (c *Client) Apply(ctx context.Context, s types.TunerState) (got types.TunerState, echoed bool, err error) {
	buf, err := c.roundTrip(ctx, "apply", BuildSetCommand(s))
	if err != nil {
		return types.TunerState{}, false, err
	}
	if err := CheckAck(buf); err != nil {
		return types.TunerState{}, false, withOp("apply", err)
	}
	if bytes.Equal(bytes.TrimRight(buf, "\r\n"), ackPrefix) {
		return s, false, nil
	}
	got, err = ParseStatus(buf, c.layout)
	if err != nil {
		return types.TunerState{}, false, withOp("apply", err)
	}
	return got, true, nil
}

// Close schließt den Port. Mehrfacher Aufruf ist erlaubt.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) roundTrip(ctx context.Context, op string, cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.NewDeviceError(op, types.ErrTransport, fmt.Errorf("port closed"))
	}

	// Alte Bytes verwerfen
	if f, ok := c.port.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return nil, types.NewDeviceError(op, types.ErrTransport, err)
		}
	}

	n, err := c.port.Write(cmd)
	if err != nil {
		return nil, types.NewDeviceError(op, types.ErrTransport, err)
	}
	if n != len(cmd) {
		return nil, types.NewDeviceError(op, types.ErrTransport,
			fmt.Errorf("short write: %d of %d bytes", n, len(cmd)))
	}

	buf, err := c.readResponse(ctx)
	if err != nil {
		return nil, withOp(op, err)
	}
	return buf, nil
}

// readResponse collects at least MinResponse bytes, or less if a line
// ends early, and then drains one byte at a time up to the newline.
// Short lines are left to the layout check.
func (c *Client) readResponse(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 0, maxResponse)
	chunk := make([]byte, maxResponse)
	lastData := time.Now()

	for !c.complete(buf) {
		// Abbruch ist kein Gerätefehler
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := c.port.Read(chunk[:maxResponse-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			lastData = time.Now()
		}
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, types.NewDeviceError("read", types.ErrTransport, fmt.Errorf("port closed after %d bytes", len(buf)))
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, types.NewDeviceError("read", types.ErrTransport, err)
		}
		if n == 0 && c.responseTimeout > 0 && time.Since(lastData) > c.responseTimeout {
			return nil, types.NewDeviceError("read", types.ErrTimeout,
				fmt.Errorf("no answer within %s (%d bytes)", c.responseTimeout, len(buf)))
		}
	}

	if bytes.IndexByte(buf, '\n') >= 0 {
		return buf, nil
	}

	one := make([]byte, 1)
	for len(buf) < maxResponse {
		n, err := c.port.Read(one)
		if n == 0 || err != nil {
			break
		}
		buf = append(buf, one[0])
		if one[0] == '\n' {
			break
		}
	}
	return buf, nil
}

func (c *Client) complete(buf []byte) bool {
	return len(buf) >= MinResponse || bytes.IndexByte(buf, '\n') >= 0
}

// withOp re-labels a device error with the verb that failed.
func withOp(op string, err error) error {
	if err == nil {
		return nil
	}
	if isCancel(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var de *types.DeviceError
	if errors.As(err, &de) {
		return &types.DeviceError{Op: op, Kind: de.Kind, Err: de.Err, Fatal: de.Fatal}
	}
	return types.NewDeviceError(op, types.ErrTransport, err)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
