package labjack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrame(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		f := BuildFrame(0x05, true)
		assert.Equal(t, Frame{0, 0, 0, 0, 0x05, 0x57, 1, 0}, f)
		assert.True(t, f.Commit())
	})

	t.Run("probe keeps value", func(t *testing.T) {
		f := BuildFrame(0x0A, false)
		assert.Equal(t, Frame{0, 0, 0, 0, 0x0A, 0x57, 0, 0}, f)
		assert.False(t, f.Commit())
	})
}

func TestEncodeState(t *testing.T) {
	tests := []struct {
		state types.RelayState
		want  byte
	}{
		{types.RelayState{}, 0x00},
		{types.RelayState{Amp: true}, 0x01},
		{types.RelayState{TRX: true}, 0x02},
		{types.RelayState{AntennaSecondary: true}, 0x04},
		{types.RelayState{DummyLoad: true}, 0x08},
		{types.RelayState{Amp: true, AntennaSecondary: true}, 0x05},
		{types.RelayState{Amp: true, TRX: true, AntennaSecondary: true, DummyLoad: true}, 0x0F},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeState(tt.state), "%+v", tt.state)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for v := 0; v < 16; v++ {
		state := types.RelayState{
			Amp:              v&1 != 0,
			TRX:              v&2 != 0,
			AntennaSecondary: v&4 != 0,
			DummyLoad:        v&8 != 0,
		}
		encoded := EncodeState(state)
		assert.Equal(t, byte(v), encoded)
		assert.Equal(t, state, DecodeStatus(encoded<<4))
	}
}

func TestDecodeStatusIgnoresLowNibble(t *testing.T) {
	assert.Equal(t, types.RelayState{}, DecodeStatus(0x0F))
	assert.Equal(t, types.RelayState{TRX: true}, DecodeStatus(0x2F))
}

func TestClientExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("echoes committed state", func(t *testing.T) {
		port := NewMockPort(types.RelayState{})
		client := NewClient(port, 50*time.Millisecond)

		reply, err := client.Exchange(ctx, BuildFrame(0x03, true))
		require.NoError(t, err)
		assert.Equal(t, byte(0x30), reply.Status())
	})

	t.Run("timeout is distinct", func(t *testing.T) {
		port := NewMockPort(types.RelayState{})
		port.TimeoutReads = 1
		client := NewClient(port, 50*time.Millisecond)

		_, err := client.Exchange(ctx, BuildFrame(0, false))
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTimeout))
		assert.False(t, errors.Is(err, types.ErrTransport))
		assert.False(t, types.IsFatal(err))
	})

	t.Run("short write is a transport failure", func(t *testing.T) {
		port := NewMockPort(types.RelayState{})
		port.ShortWrite = true
		client := NewClient(port, 50*time.Millisecond)

		_, err := client.Exchange(ctx, BuildFrame(1, true))
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransport))
	})

	t.Run("read error is a transport failure", func(t *testing.T) {
		port := NewMockPort(types.RelayState{})
		port.ReadErr = errors.New("pipe")
		client := NewClient(port, 50*time.Millisecond)

		_, err := client.Exchange(ctx, BuildFrame(1, true))
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrTransport))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		port := NewMockPort(types.RelayState{})
		client := NewClient(port, 50*time.Millisecond)

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())
		assert.Equal(t, 1, port.CloseCount())
		assert.True(t, client.IsClosed())

		_, err := client.Exchange(ctx, BuildFrame(0, false))
		assert.True(t, errors.Is(err, types.ErrTransport))
	})
}
