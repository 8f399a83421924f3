package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// ErrUnsupported is returned for actions the device does not have.
var ErrUnsupported = errors.New("action not supported by device")

// Controller owns one device and its last known state. Calls are not
// safe for concurrent use; the session serializes them.
type Controller interface {
	Kind() types.DeviceKind
	Supports(a Action) bool

	// Refresh reads the device state. Failure is fatal.
	Refresh(ctx context.Context) error
	// Execute performs one action. On failure the state is unchanged.
	Execute(ctx context.Context, a Action) error
	// Poll samples transient readings. Failures are never fatal.
	Poll(ctx context.Context) error

	// Fill copies the current state into a snapshot.
	Fill(s *types.Snapshot)
	Close() error
}

func unsupported(kind types.DeviceKind, a Action) error {
	return fmt.Errorf("%s: %w: %s", kind, ErrUnsupported, a)
}
