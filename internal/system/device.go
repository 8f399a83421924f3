package system

import (
	"fmt"
	"time"

	"github.com/KevinKickass/ShackControl/internal/config"
	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/labjack"
	"github.com/KevinKickass/ShackControl/internal/tuner"
	"github.com/KevinKickass/ShackControl/internal/types"
	"go.uber.org/zap"
)

// openController acquires the device and wraps it in its controller.
// With simulate set an in-memory device stands in for the hardware.
func openController(kind types.DeviceKind, cfg *config.Config, simulate bool, logger *zap.Logger) (control.Controller, error) {
	switch kind {
	case types.DeviceRelay:
		var port labjack.Port
		if simulate {
			port = labjack.NewMockPort(types.RelayState{})
		} else {
			p, err := labjack.Open(uint16(cfg.Relay.VendorID), uint16(cfg.Relay.ProductID), cfg.Relay.WriteTimeout)
			if err != nil {
				return nil, err
			}
			port = p
		}
		logger.Info("LabJack opened",
			zap.String("vendor_id", fmt.Sprintf("0x%04x", cfg.Relay.VendorID)),
			zap.String("product_id", fmt.Sprintf("0x%04x", cfg.Relay.ProductID)),
			zap.Bool("simulated", simulate))
		client := labjack.NewClient(port, cfg.Relay.ReadTimeout)
		return control.NewRelayController(client, logger), nil

	case types.DeviceTuner:
		layout, err := tuner.LayoutByName(cfg.Tuner.FrameLayout)
		if err != nil {
			return nil, err
		}
		var port tuner.Port
		if simulate {
			port = tuner.NewMockPort(layout, types.TunerState{})
		} else {
			p, err := tuner.OpenSerial(cfg.Tuner.Device, cfg.Tuner.BaudRate, cfg.Tuner.ReadPoll)
			if err != nil {
				return nil, err
			}
			port = p
		}
		logger.Info("Tuner port opened",
			zap.String("device", cfg.Tuner.Device),
			zap.Int("baud_rate", cfg.Tuner.BaudRate),
			zap.String("layout", cfg.Tuner.FrameLayout),
			zap.Bool("simulated", simulate))
		client := tuner.NewClient(port, layout, cfg.Tuner.ResponseTimeout)
		return control.NewTunerController(client, logger), nil
	}
	return nil, fmt.Errorf("unknown device kind %q", kind)
}

// Only the tuner has readings that change on their own.
func pollInterval(kind types.DeviceKind, cfg *config.Config) time.Duration {
	if kind == types.DeviceTuner {
		return cfg.Tuner.PollInterval
	}
	return 0
}
