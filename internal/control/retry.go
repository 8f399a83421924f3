package control

import (
	"context"
	"errors"

	"github.com/KevinKickass/ShackControl/internal/labjack"
	"github.com/KevinKickass/ShackControl/internal/types"
	"go.uber.org/zap"
)

// exchangeWithRetry sends f and retries exactly once on a read timeout.
// Every other failure, and a second timeout, is fatal: the device is
// closed before the error is returned. A cancelled ctx is passed
// through untouched and leaves the device open.
func exchangeWithRetry(ctx context.Context, client *labjack.Client, logger *zap.Logger, op string, f labjack.Frame) (labjack.Reply, error) {
	reply, err := client.Exchange(ctx, f)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return reply, err
	}

	if errors.Is(err, types.ErrTimeout) {
		logger.Warn("U12 read timed out, retrying",
			zap.String("op", op),
			zap.Stringer("frame", f))

		reply, err = client.Exchange(ctx, f)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return reply, err
		}
		if errors.Is(err, types.ErrTimeout) {
			err = &types.DeviceError{Op: op, Kind: types.ErrTransport, Err: err}
		}
	}

	if cerr := client.Close(); cerr != nil {
		logger.Warn("Closing U12 failed", zap.Error(cerr))
	}
	return reply, types.AsFatal(op, err)
}
