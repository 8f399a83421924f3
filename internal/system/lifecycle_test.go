package system

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/ShackControl/internal/auth"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T, name, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func baseOptions(t *testing.T, kind types.DeviceKind, keys string) (Options, *os.File, *bytes.Buffer) {
	dir := t.TempDir()
	stdout := tempFile(t, "stdout", "")
	var stderr bytes.Buffer
	return Options{
		Kind:       kind,
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		LogFile:    filepath.Join(dir, "shack.log"),
		Simulate:   true,
		Stdin:      tempFile(t, "stdin", keys),
		Stdout:     stdout,
		Stderr:     &stderr,
	}, stdout, &stderr
}

func readOutput(t *testing.T, f *os.File) []string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRunRelaySimulated(t *testing.T) {
	opts, stdout, _ := baseOptions(t, types.DeviceRelay, "a2xq")

	code := Run(context.Background(), opts)
	require.Equal(t, ExitOK, code)

	lines := readOutput(t, stdout)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "CLOSED")
	assert.Contains(t, last, "Amp  [ON]")
	assert.Contains(t, last, "[ANT2]")
}

func TestRunTunerSimulated(t *testing.T) {
	opts, stdout, _ := baseOptions(t, types.DeviceTuner, "ddkn")

	// end of input quits
	code := Run(context.Background(), opts)
	require.Equal(t, ExitOK, code)

	lines := readOutput(t, stdout)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "L=   2, C =   1, Lo-Z")
	assert.Contains(t, last, "SWR")
}

func TestRunCancelled(t *testing.T) {
	opts, _, _ := baseOptions(t, types.DeviceRelay, "")
	opts.Remote = true
	opts.RemoteListen = "127.0.0.1:0"

	// stdin is not a terminal and the panel is on, so only ctx ends the run
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Equal(t, ExitOK, Run(ctx, opts))
}

func TestRunNoDevice(t *testing.T) {
	opts, _, stderr := baseOptions(t, types.DeviceTuner, "q")
	opts.Simulate = false
	opts.Device = filepath.Join(t.TempDir(), "ttyNONE")

	assert.Equal(t, ExitDevice, Run(context.Background(), opts))
	assert.NotEmpty(t, stderr.String())
}

func TestRunBadConfig(t *testing.T) {
	opts, _, stderr := baseOptions(t, types.DeviceTuner, "q")
	opts.ConfigPath = tempFile(t, "bad.yaml", "tuner:\n  baud_rate: -5\n").Name()

	assert.Equal(t, ExitUsage, Run(context.Background(), opts))
	assert.Contains(t, stderr.String(), "config")
}

func TestWriteConfig(t *testing.T) {
	opts, _, _ := baseOptions(t, types.DeviceRelay, "")
	opts.WriteConfig = filepath.Join(t.TempDir(), "config.yaml")

	require.Equal(t, ExitOK, Run(context.Background(), opts))
	data, err := os.ReadFile(opts.WriteConfig)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame_layout: packed")
}

func TestIssueToken(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"

	t.Run("without secret", func(t *testing.T) {
		t.Setenv("SHACK_JWT_SECRET", "")
		opts, _, _ := baseOptions(t, types.DeviceRelay, "")
		opts.IssueToken = "DL1ABC"
		opts.TokenScope = "control"
		assert.Equal(t, ExitUsage, Run(context.Background(), opts))
	})

	t.Run("issues", func(t *testing.T) {
		t.Setenv("SHACK_JWT_SECRET", secret)
		opts, stdout, _ := baseOptions(t, types.DeviceRelay, "")
		opts.IssueToken = "DL1ABC"
		opts.TokenScope = "monitor"
		require.Equal(t, ExitOK, Run(context.Background(), opts))

		token := readOutput(t, stdout)[0]
		claims, err := auth.NewTokenHandler(secret, time.Hour).Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "DL1ABC", claims.Operator)
		assert.Equal(t, auth.ScopeMonitor, claims.Scope)
	})

	t.Run("bad scope", func(t *testing.T) {
		t.Setenv("SHACK_JWT_SECRET", secret)
		opts, _, _ := baseOptions(t, types.DeviceRelay, "")
		opts.IssueToken = "DL1ABC"
		opts.TokenScope = "root"
		assert.Equal(t, ExitUsage, Run(context.Background(), opts))
	})
}
