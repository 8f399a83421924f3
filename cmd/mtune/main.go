package main

import (
	"context"
	"errors"
	"os"

	"github.com/KevinKickass/ShackControl/internal/system"
	"github.com/KevinKickass/ShackControl/internal/types"
)

func main() {
	opts, err := system.ParseArgs(types.DeviceTuner, os.Args, os.Stderr)
	if err != nil {
		if errors.Is(err, system.ErrHelp) {
			os.Exit(system.ExitOK)
		}
		os.Exit(system.ExitUsage)
	}

	os.Exit(system.Run(context.Background(), opts))
}
