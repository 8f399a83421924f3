package labjack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// Port is the raw U12 handle. Read must return an error matching
// types.ErrTimeout (or the context's deadline error) when nothing arrives
// before ctx expires.
type Port interface {
	Write(p []byte) (int, error)
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

type Client struct {
	port        Port
	mu          sync.Mutex
	readTimeout time.Duration
	closed      bool
}

func NewClient(port Port, readTimeout time.Duration) *Client {
	return &Client{
		port:        port,
		readTimeout: readTimeout,
	}
}

// Exchange sendet ein Frame und wartet auf die 8-Byte Antwort.
// Retries are up to the caller; a read timeout is reported as
// types.ErrTimeout, everything else as types.ErrTransport. If ctx ends
// during the read, its error is returned as is.
func (c *Client) Exchange(ctx context.Context, f Frame) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var reply Reply
	if c.closed {
		return reply, types.NewDeviceError("exchange", types.ErrTransport, fmt.Errorf("device closed"))
	}

	n, err := c.port.Write(f[:])
	if err != nil {
		return reply, types.NewDeviceError("write", types.ErrTransport, err)
	}
	if n != FrameLength {
		return reply, types.NewDeviceError("write", types.ErrTransport,
			fmt.Errorf("short write: %d of %d bytes", n, FrameLength))
	}

	readCtx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	buf := make([]byte, FrameLength)
	n, err = c.port.Read(readCtx, buf)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return reply, fmt.Errorf("read: %w", cerr)
		}
		if isTimeout(err) {
			return reply, types.NewDeviceError("read", types.ErrTimeout, err)
		}
		return reply, types.NewDeviceError("read", types.ErrTransport, err)
	}

	reply, err = DecodeReply(buf[:n])
	if err != nil {
		return reply, types.NewDeviceError("read", types.ErrTransport, err)
	}

	return reply, nil
}

// Close gibt das Gerät frei. Mehrfacher Aufruf ist erlaubt.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

// IsClosed reports whether the device handle has been released.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func isTimeout(err error) bool {
	return errors.Is(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
