package system

import (
	"errors"
	"fmt"
	"io"

	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/pborman/getopt"
)

// ErrHelp is returned by ParseArgs when -h was given.
var ErrHelp = errors.New("help requested")

// ParseArgs reads the command line of antp or mtune. args[0] is the
// program name. Usage is written to usage on error or -h.
func ParseArgs(kind types.DeviceKind, args []string, usage io.Writer) (Options, error) {
	set := getopt.New()
	if len(args) > 0 {
		set.SetProgram(args[0])
	}

	h := set.BoolLong("help", 'h', "display help")
	c := set.StringLong("config", 'c', "", "Config file (default: user config dir)")
	v := set.BoolLong("verbose", 'v', "Enable verbose (debug) logging")
	l := set.StringLong("log-file", 'l', "", "Write logs to this file")
	r := set.BoolLong("remote", 'r', "Enable the remote panel")
	ls := set.StringLong("listen", 'L', "", "Remote panel listen address, implies -r")
	s := set.BoolLong("simulate", 's', "Use a simulated device instead of hardware")
	it := set.StringLong("issue-token", 0, "", "Print a remote panel token for OPERATOR and exit", "OPERATOR")
	sc := set.StringLong("scope", 0, "control", "Token scope: monitor or control")
	wc := set.StringLong("write-config", 0, "", "Write the default config to PATH and exit", "PATH")
	var d *string
	if kind == types.DeviceTuner {
		d = set.StringLong("device", 'd', "", "Serial port of the tuner")
	}

	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintln(usage, err)
		set.PrintUsage(usage)
		return Options{}, err
	}
	if *h {
		fmt.Fprintln(usage, aboutString(kind))
		set.PrintUsage(usage)
		return Options{}, ErrHelp
	}
	if set.NArgs() > 0 {
		err := fmt.Errorf("unexpected argument: %s", set.Arg(0))
		fmt.Fprintln(usage, err)
		set.PrintUsage(usage)
		return Options{}, err
	}

	opts := Options{
		Kind:         kind,
		ConfigPath:   *c,
		Verbose:      *v,
		LogFile:      *l,
		Remote:       *r,
		RemoteListen: *ls,
		Simulate:     *s,
		IssueToken:   *it,
		TokenScope:   *sc,
		WriteConfig:  *wc,
	}
	if d != nil {
		opts.Device = *d
	}
	return opts, nil
}

func aboutString(kind types.DeviceKind) string {
	if kind == types.DeviceTuner {
		return "mtune - remote antenna tuner control"
	}
	return "antp - amplifier, transceiver and antenna relay control"
}
