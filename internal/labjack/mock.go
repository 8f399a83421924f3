package labjack

import (
	"context"
	"fmt"
	"sync"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// MockPort simulates a U12 with relays on IO0-IO3. Committed values are
// latched and echoed back shifted into the upper nibble of the status
// byte, like the real device.
type MockPort struct {
	mu      sync.Mutex
	outputs byte
	pending []byte
	writes  []Frame
	closed  int

	// TimeoutReads lets the next n reads time out.
	TimeoutReads int
	// ShortWrite makes every write accept only half the frame.
	ShortWrite bool
	// ReadErr is returned by every read when set.
	ReadErr error

	hang bool
}

// NewMockPort creates a simulated U12 with the given relay outputs.
func NewMockPort(initial types.RelayState) *MockPort {
	return &MockPort{outputs: EncodeState(initial)}
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed > 0 {
		return 0, fmt.Errorf("mock: device closed")
	}
	if m.ShortWrite {
		return len(p) / 2, nil
	}

	var f Frame
	copy(f[:], p)
	m.writes = append(m.writes, f)

	if f[ModeOffset] == ModeDIO && f.Commit() {
		m.outputs = f.Value() & 0x0F
	}

	reply := make([]byte, FrameLength)
	reply[StatusOffset] = m.outputs << 4
	m.pending = reply
	return len(p), nil
}

// Hang makes reads block until their context ends.
func (m *MockPort) Hang(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang = on
}

func (m *MockPort) Read(ctx context.Context, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hang {
		m.mu.Unlock()
		<-ctx.Done()
		m.mu.Lock()
		return 0, ctx.Err()
	}

	if m.TimeoutReads > 0 {
		m.TimeoutReads--
		return 0, fmt.Errorf("mock: %w", types.ErrTimeout)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if m.pending == nil {
		return 0, fmt.Errorf("mock: %w", types.ErrTimeout)
	}
	n := copy(p, m.pending)
	m.pending = nil
	return n, nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Writes returns every frame written so far.
func (m *MockPort) Writes() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.writes))
	copy(out, m.writes)
	return out
}

// CloseCount returns how often Close was called.
func (m *MockPort) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
