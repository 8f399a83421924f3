package control

import (
	"context"

	"github.com/KevinKickass/ShackControl/internal/labjack"
	"github.com/KevinKickass/ShackControl/internal/types"
	"go.uber.org/zap"
)

// RelayController drives amp, TRX and antenna relays on a U12.
type RelayController struct {
	client *labjack.Client
	logger *zap.Logger
	state  types.RelayState
}

func NewRelayController(client *labjack.Client, logger *zap.Logger) *RelayController {
	return &RelayController{
		client: client,
		logger: logger,
	}
}

func (c *RelayController) Kind() types.DeviceKind {
	return types.DeviceRelay
}

func (c *RelayController) Supports(a Action) bool {
	return supports(RelayActions, a)
}

// State returns the flags last read back from the device.
func (c *RelayController) State() types.RelayState {
	return c.state
}

// Refresh liest den Zustand mit einem reinen Lese-Frame.
func (c *RelayController) Refresh(ctx context.Context) error {
	f := labjack.BuildFrame(labjack.EncodeState(c.state), false)
	reply, err := exchangeWithRetry(ctx, c.client, c.logger, "refresh", f)
	if err != nil {
		return err
	}
	c.state = labjack.DecodeStatus(reply.Status())
	return nil
}

// Apply commits desired and adopts whatever the device reads back.
func (c *RelayController) Apply(ctx context.Context, desired types.RelayState) error {
	value := labjack.EncodeState(desired)
	reply, err := exchangeWithRetry(ctx, c.client, c.logger, "apply", labjack.BuildFrame(value, true))
	if err != nil {
		return err
	}

	c.state = labjack.DecodeStatus(reply.Status())
	c.logger.Debug("Relays applied",
		zap.Uint8("value", value),
		zap.Bool("amp", c.state.Amp),
		zap.Bool("trx", c.state.TRX),
		zap.Bool("antenna_secondary", c.state.AntennaSecondary),
		zap.Bool("dummy_load", c.state.DummyLoad))

	if c.state != desired {
		c.logger.Warn("Relay readback differs from request",
			zap.Uint8("requested", value),
			zap.Uint8("readback", labjack.EncodeState(c.state)))
	}
	return nil
}

func (c *RelayController) ToggleAmp(ctx context.Context) error {
	s := c.state
	s.Amp = !s.Amp
	return c.Apply(ctx, s)
}

func (c *RelayController) ToggleTRX(ctx context.Context) error {
	s := c.state
	s.TRX = !s.TRX
	return c.Apply(ctx, s)
}

// SelectAntenna schaltet auf Antenne 1 oder 2 und nimmt die Dummy Load weg.
func (c *RelayController) SelectAntenna(ctx context.Context, secondary bool) error {
	s := c.state
	s.DummyLoad = false
	s.AntennaSecondary = secondary
	return c.Apply(ctx, s)
}

// SetDummyLoad switches to the dummy load. The antenna bit is kept.
func (c *RelayController) SetDummyLoad(ctx context.Context) error {
	s := c.state
	s.DummyLoad = true
	return c.Apply(ctx, s)
}

func (c *RelayController) Execute(ctx context.Context, a Action) error {
	switch a {
	case ActionToggleAmp:
		return c.ToggleAmp(ctx)
	case ActionToggleTRX:
		return c.ToggleTRX(ctx)
	case ActionAntennaPrimary:
		return c.SelectAntenna(ctx, false)
	case ActionAntennaSecondary:
		return c.SelectAntenna(ctx, true)
	case ActionDummyLoad:
		return c.SetDummyLoad(ctx)
	case ActionRefresh:
		return c.Refresh(ctx)
	default:
		return unsupported(c.Kind(), a)
	}
}

// Poll does nothing; the relays only change on request.
func (c *RelayController) Poll(ctx context.Context) error {
	return nil
}

func (c *RelayController) Fill(s *types.Snapshot) {
	state := c.state
	s.Device = c.Kind()
	s.Relay = &state
}

func (c *RelayController) Close() error {
	return c.client.Close()
}
