package control

import (
	"context"

	"github.com/KevinKickass/ShackControl/internal/calibration"
	"github.com/KevinKickass/ShackControl/internal/tuner"
	"github.com/KevinKickass/ShackControl/internal/types"
	"go.uber.org/zap"
)

// TunerController holds the L/C/network setting of the remote tuner and
// the last power sample.
type TunerController struct {
	client *tuner.Client
	logger *zap.Logger
	state  types.TunerState
	power  *types.PowerReading
}

func NewTunerController(client *tuner.Client, logger *zap.Logger) *TunerController {
	return &TunerController{
		client: client,
		logger: logger,
	}
}

func (c *TunerController) Kind() types.DeviceKind {
	return types.DeviceTuner
}

func (c *TunerController) Supports(a Action) bool {
	return supports(TunerActions, a)
}

func (c *TunerController) State() types.TunerState {
	return c.state
}

// Power returns the last good sample, nil before the first one.
func (c *TunerController) Power() *types.PowerReading {
	return c.power
}

// Refresh liest die aktuelle Einstellung vom Tuner.
func (c *TunerController) Refresh(ctx context.Context) error {
	s, err := c.client.ReadStatus(ctx)
	if err != nil {
		return c.fail(ctx, "refresh", err)
	}
	c.state = s
	c.logger.Info("Tuner setting read",
		zap.Int("inductance", s.Inductance),
		zap.Int("capacitance", s.Capacitance),
		zap.Stringer("network", s.Network))
	return nil
}

// Apply pushes desired to the tuner and adopts the setting the tuner
// echoes back. A failed write ends the session.
func (c *TunerController) Apply(ctx context.Context, desired types.TunerState) error {
	desired = desired.Clamp()
	got, echoed, err := c.client.Apply(ctx, desired)
	if err != nil {
		return c.fail(ctx, "apply", err)
	}
	if !echoed {
		c.logger.Warn("Tuner acknowledged without echo, assuming requested setting")
	} else if got != desired {
		c.logger.Warn("Tuner echo differs from request",
			zap.Int("requested_inductance", desired.Inductance),
			zap.Int("requested_capacitance", desired.Capacitance),
			zap.Stringer("requested_network", desired.Network),
			zap.Int("inductance", got.Inductance),
			zap.Int("capacitance", got.Capacitance),
			zap.Stringer("network", got.Network))
	}
	c.state = got
	c.logger.Debug("Tuner setting applied",
		zap.Int("inductance", got.Inductance),
		zap.Int("capacitance", got.Capacitance),
		zap.Stringer("network", got.Network))
	return nil
}

// step moves L or C by delta. At the range limit nothing is sent.
func (c *TunerController) step(ctx context.Context, inductance bool, delta int) error {
	s := c.state
	if inductance {
		s.Inductance += delta
	} else {
		s.Capacitance += delta
	}
	s = s.Clamp()
	if s == c.state {
		return nil
	}
	return c.Apply(ctx, s)
}

func (c *TunerController) IncInductance(ctx context.Context) error {
	return c.step(ctx, true, 1)
}

func (c *TunerController) DecInductance(ctx context.Context) error {
	return c.step(ctx, true, -1)
}

func (c *TunerController) IncCapacitance(ctx context.Context) error {
	return c.step(ctx, false, 1)
}

func (c *TunerController) DecCapacitance(ctx context.Context) error {
	return c.step(ctx, false, -1)
}

func (c *TunerController) ToggleNetwork(ctx context.Context) error {
	s := c.state
	s.Network = s.Network.Toggle()
	return c.Apply(ctx, s)
}

// Reset setzt L, C und Netzwerk auf 0 / Hi-Z.
func (c *TunerController) Reset(ctx context.Context) error {
	return c.Apply(ctx, types.TunerState{})
}

func (c *TunerController) Execute(ctx context.Context, a Action) error {
	switch a {
	case ActionIncInductance:
		return c.IncInductance(ctx)
	case ActionDecInductance:
		return c.DecInductance(ctx)
	case ActionIncCapacitance:
		return c.IncCapacitance(ctx)
	case ActionDecCapacitance:
		return c.DecCapacitance(ctx)
	case ActionToggleNetwork:
		return c.ToggleNetwork(ctx)
	case ActionReset:
		return c.Reset(ctx)
	case ActionRefresh:
		return c.Refresh(ctx)
	default:
		return unsupported(c.Kind(), a)
	}
}

// Poll reads forward and reflected power. On failure the previous
// sample is kept.
func (c *TunerController) Poll(ctx context.Context) error {
	fwd, ref, err := c.client.ReadPower(ctx)
	if err != nil {
		c.logger.Debug("Power poll failed", zap.Error(err))
		return err
	}
	reading := NewPowerReading(fwd, ref)
	c.power = &reading
	return nil
}

func (c *TunerController) Fill(s *types.Snapshot) {
	state := c.state
	s.Device = c.Kind()
	s.Tuner = &state
	if c.power != nil {
		p := *c.power
		s.Power = &p
	}
}

func (c *TunerController) Close() error {
	return c.client.Close()
}

// fail closes the port and marks err fatal. A cancelled ctx is not a
// device failure; the session releases the port on its own.
func (c *TunerController) fail(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if cerr := c.client.Close(); cerr != nil {
		c.logger.Warn("Closing tuner port failed", zap.Error(cerr))
	}
	return types.AsFatal(op, err)
}

// NewPowerReading derives watts and SWR from raw counts.
func NewPowerReading(fwd, ref int) types.PowerReading {
	swr := calibration.ComputeSWR(fwd, ref)
	return types.PowerReading{
		ForwardRaw:     fwd,
		ReflectedRaw:   ref,
		ForwardWatts:   calibration.ToWatts(fwd),
		ReflectedWatts: calibration.ToWatts(ref),
		SWR:            swr,
		SWRText:        calibration.FormatSWR(swr),
	}
}
