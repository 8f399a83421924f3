package tuner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommand(t *testing.T) {
	assert.Equal(t, "tu0101r", string(BuildCommand(CmdRead)))
	assert.Equal(t, "tu0101p", string(BuildCommand(CmdPower)))

	set := BuildSetCommand(types.TunerState{Inductance: 5, Capacitance: 127, Network: types.NetworkLoZ})
	assert.Equal(t, "tu0101s0051271", string(set))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		layout Layout
		want   types.TunerState
	}{
		{"packed", "ok0050100\n", PackedLayout, types.TunerState{Inductance: 5, Capacitance: 10, Network: types.NetworkHiZ}},
		{"packed lo-z", "ok1270001\r\n", PackedLayout, types.TunerState{Inductance: 127, Capacitance: 0, Network: types.NetworkLoZ}},
		{"separated leading blanks", "ok 005 0100\n", SeparatedLayout, types.TunerState{Inductance: 5, Capacitance: 10, Network: types.NetworkHiZ}},
		{"separated trailing blanks", "ok005 010 0\n", SeparatedLayout, types.TunerState{Inductance: 5, Capacitance: 10, Network: types.NetworkHiZ}},
		{"separated lo-z", "ok042 017 1\n", SeparatedLayout, types.TunerState{Inductance: 42, Capacitance: 17, Network: types.NetworkLoZ}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus([]byte(tt.input), tt.layout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		layout Layout
	}{
		{"bad prefix", "no0050100\n", PackedLayout},
		{"empty", "", PackedLayout},
		{"short for layout", "ok005\n", PackedLayout},
		{"short for separated", "ok0050100\n", SeparatedLayout},
		{"no digits", "okabc0100\n", PackedLayout},
		{"out of range", "ok2000100\n", PackedLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatus([]byte(tt.input), tt.layout)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrProtocol), "got %v", err)
		})
	}
}

func TestParsePowerOrder(t *testing.T) {
	fwd, ref, err := ParsePower([]byte("ok0120400\n"), PackedLayout)
	require.NoError(t, err)
	assert.Equal(t, 40, fwd)
	assert.Equal(t, 12, ref)
}

func TestLayoutByName(t *testing.T) {
	l, err := LayoutByName("")
	require.NoError(t, err)
	assert.Equal(t, PackedLayout, l)

	l, err = LayoutByName("separated")
	require.NoError(t, err)
	assert.Equal(t, 11, l.MinLength())

	_, err = LayoutByName("weird")
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("read status over partial reads", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{Inductance: 5, Capacitance: 10})
		port.ChunkSize = 2
		client := NewClient(port, PackedLayout, time.Second)

		s, err := client.ReadStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.TunerState{Inductance: 5, Capacitance: 10, Network: types.NetworkHiZ}, s)
		assert.Equal(t, []string{"tu0101r"}, port.Writes())
	})

	t.Run("separated layout drains to newline", func(t *testing.T) {
		port := NewMockPort(SeparatedLayout, types.TunerState{Inductance: 7, Capacitance: 3, Network: types.NetworkLoZ})
		port.ChunkSize = 5
		client := NewClient(port, SeparatedLayout, time.Second)

		s, err := client.ReadStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.TunerState{Inductance: 7, Capacitance: 3, Network: types.NetworkLoZ}, s)
	})

	t.Run("read power", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Forward = 100
		port.Reflected = 50
		client := NewClient(port, PackedLayout, time.Second)

		fwd, ref, err := client.ReadPower(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, fwd)
		assert.Equal(t, 50, ref)
	})

	t.Run("apply", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		client := NewClient(port, PackedLayout, time.Second)

		want := types.TunerState{Inductance: 12, Capacitance: 34, Network: types.NetworkLoZ}
		got, echoed, err := client.Apply(ctx, want)
		require.NoError(t, err)
		assert.True(t, echoed)
		assert.Equal(t, want, got)
		assert.Equal(t, want, port.State())
		assert.Equal(t, []string{"tu0101s0120341"}, port.Writes())
	})

	t.Run("apply returns the echoed setting", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Script("ok0990991\n")
		client := NewClient(port, PackedLayout, time.Second)

		got, echoed, err := client.Apply(ctx, types.TunerState{Inductance: 6, Capacitance: 10})
		require.NoError(t, err)
		assert.True(t, echoed)
		assert.Equal(t, types.TunerState{Inductance: 99, Capacitance: 99, Network: types.NetworkLoZ}, got)
	})

	t.Run("bare ack keeps the request", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Script("ok\n")
		client := NewClient(port, PackedLayout, time.Second)

		want := types.TunerState{Inductance: 6, Capacitance: 10}
		got, echoed, err := client.Apply(ctx, want)
		require.NoError(t, err)
		assert.False(t, echoed)
		assert.Equal(t, want, got)
	})

	t.Run("out of range echo", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Script("ok2000000\n")
		client := NewClient(port, PackedLayout, time.Second)

		_, _, err := client.Apply(ctx, types.TunerState{Inductance: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrProtocol))
	})

	t.Run("bad ack", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Script("er0000000\n")
		client := NewClient(port, PackedLayout, time.Second)

		_, _, err := client.Apply(ctx, types.TunerState{Inductance: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrProtocol))
	})

	t.Run("short write", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.ShortWrite = true
		client := NewClient(port, PackedLayout, time.Second)

		_, err := client.ReadStatus(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransport))
	})

	t.Run("silent tuner times out", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Silent = true
		client := NewClient(port, PackedLayout, 20*time.Millisecond)

		_, _, err := client.ReadPower(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTimeout))
	})

	t.Run("cancelled context ends unbounded wait", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		port.Silent = true
		client := NewClient(port, PackedLayout, 0)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := client.ReadStatus(cctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("closed client", func(t *testing.T) {
		port := NewMockPort(PackedLayout, types.TunerState{})
		client := NewClient(port, PackedLayout, time.Second)

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())
		assert.Equal(t, 1, port.CloseCount())

		_, err := client.ReadStatus(ctx)
		assert.True(t, errors.Is(err, types.ErrTransport))
	})
}
