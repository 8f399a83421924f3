package system

import (
	"bytes"
	"testing"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	var usage bytes.Buffer
	opts, err := ParseArgs(types.DeviceTuner, []string{"mtune", "-v", "-d", "/dev/ttyUSB1", "--listen", ":9000", "-c", "/tmp/x.yaml"}, &usage)
	require.NoError(t, err)
	assert.Equal(t, types.DeviceTuner, opts.Kind)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "/dev/ttyUSB1", opts.Device)
	assert.Equal(t, ":9000", opts.RemoteListen)
	assert.Equal(t, "/tmp/x.yaml", opts.ConfigPath)
	assert.Equal(t, "control", opts.TokenScope)
	assert.Empty(t, usage.String())
}

func TestParseArgsToken(t *testing.T) {
	opts, err := ParseArgs(types.DeviceRelay, []string{"antp", "--issue-token", "DL1ABC", "--scope", "monitor"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "DL1ABC", opts.IssueToken)
	assert.Equal(t, "monitor", opts.TokenScope)
}

func TestParseArgsErrors(t *testing.T) {
	var usage bytes.Buffer
	_, err := ParseArgs(types.DeviceRelay, []string{"antp", "-h"}, &usage)
	assert.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, usage.String(), "antp")

	// antp has no serial port
	_, err = ParseArgs(types.DeviceRelay, []string{"antp", "-d", "/dev/ttyS0"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = ParseArgs(types.DeviceRelay, []string{"antp", "extra"}, &bytes.Buffer{})
	assert.Error(t, err)
}
