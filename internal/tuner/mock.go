package tuner

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// MockPort simulates the tuner firmware on the serial line. Answers are
// formatted with the given layout and handed out ChunkSize bytes per Read.
type MockPort struct {
	mu       sync.Mutex
	layout   Layout
	state    types.TunerState
	pending  []byte
	scripted [][]byte
	writes   []string
	closed   int

	// Raw counts reported by the power command.
	Forward   int
	Reflected int
	// ChunkSize limits bytes per Read; 0 returns everything pending.
	ChunkSize int
	// ShortWrite drops the last byte of every command.
	ShortWrite bool
	// Silent suppresses all answers.
	Silent bool
}

func NewMockPort(layout Layout, initial types.TunerState) *MockPort {
	return &MockPort{layout: layout, state: initial}
}

// Script queues raw answers that replace the simulated ones, one per
// command.
func (m *MockPort) Script(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.scripted = append(m.scripted, []byte(r))
	}
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed > 0 {
		return 0, fmt.Errorf("mock: port closed")
	}
	m.writes = append(m.writes, string(p))
	if m.ShortWrite {
		return len(p) - 1, nil
	}
	if m.Silent {
		return len(p), nil
	}

	if len(m.scripted) > 0 {
		m.pending = append(m.pending, m.scripted[0]...)
		m.scripted = m.scripted[1:]
		return len(p), nil
	}

	m.pending = append(m.pending, m.answer(p)...)
	return len(p), nil
}

func (m *MockPort) answer(cmd []byte) []byte {
	if !bytes.HasPrefix(cmd, []byte(Magic)) || len(cmd) < len(Magic)+1 {
		return []byte("er\n")
	}

	switch Command(cmd[len(Magic)]) {
	case CmdRead, CmdTest:
		return m.format(m.state.Inductance, m.state.Capacitance, byte('0'+m.state.Network))
	case CmdPower:
		return m.format(m.Reflected, m.Forward, '0')
	case CmdSet:
		args := cmd[len(Magic)+1:]
		if len(args) != 7 {
			return []byte("er\n")
		}
		l, errL := strconv.Atoi(string(args[0:3]))
		c, errC := strconv.Atoi(string(args[3:6]))
		if errL != nil || errC != nil {
			return []byte("er\n")
		}
		m.state = types.TunerState{Inductance: l, Capacitance: c, Network: types.NetworkHiZ}
		if args[6] != '0' {
			m.state.Network = types.NetworkLoZ
		}
		return m.format(l, c, args[6])
	default:
		return []byte("er\n")
	}
}

func (m *MockPort) format(first, second int, flag byte) []byte {
	if m.layout.Name == SeparatedLayout.Name {
		return []byte(fmt.Sprintf("ok%03d %03d %c\n", first, second, flag))
	}
	return []byte(fmt.Sprintf("ok%03d%03d%c\n", first, second, flag))
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		// read poll
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	defer m.mu.Unlock()

	n := len(m.pending)
	if m.ChunkSize > 0 && n > m.ChunkSize {
		n = m.ChunkSize
	}
	n = copy(p, m.pending[:n])
	m.pending = m.pending[n:]
	return n, nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// State returns the setting the simulated tuner holds.
func (m *MockPort) State() types.TunerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Writes returns every command received.
func (m *MockPort) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockPort) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
