package interfaces

import (
	"context"

	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/types"
)

// Panel is what remote surfaces (REST, websocket, MQTT) see of a running
// control session. Every action goes through Submit so the device is only
// ever touched by the session loop.
type Panel interface {
	Kind() types.DeviceKind
	Snapshot() types.Snapshot
	Submit(ctx context.Context, a control.Action) (types.Snapshot, error)
}

// RemoteAllowed reports whether a remote caller may submit a.
// Ending the session stays with the local operator.
func RemoteAllowed(a control.Action) bool {
	return a != control.ActionQuit
}
