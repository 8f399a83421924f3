package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/KevinKickass/ShackControl/internal/calibration"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/crypto/ssh/terminal"
)

const (
	eraseScreen = "\033[2J\033[H"
	crlf        = "\r\n"
)

// Renderer draws snapshots. On a terminal it redraws a status screen,
// otherwise it prints one plain line per snapshot.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	tty   bool
	cols  int
	title string
	help  string

	preGenerated struct {
		title    *color.Color
		on       string
		off      string
		selected *color.Color
		swrGood  *color.Color
		swrWarn  *color.Color
		swrBad   *color.Color
		err      *color.Color
	}
}

func NewRenderer(out *os.File, kind types.DeviceKind) *Renderer {
	tty := isatty.IsTerminal(out.Fd())
	cols, _, err := terminal.GetSize(int(out.Fd()))
	if err != nil || cols <= 0 {
		cols = 80
	}
	return newRenderer(out, kind, tty, cols)
}

func newRenderer(out io.Writer, kind types.DeviceKind, tty bool, cols int) *Renderer {
	_, title, help := KeysFor(kind)
	r := &Renderer{out: out, tty: tty, cols: cols, title: title, help: help}

	r.preGenerated.title = color.New(color.Bold)
	r.preGenerated.on = color.New(color.FgHiGreen, color.Bold).Sprint("[ON]")
	r.preGenerated.off = color.New(color.FgHiBlack).Sprint("[OFF]")
	r.preGenerated.selected = color.New(color.FgHiWhite)
	r.preGenerated.selected.Add(color.BgBlue)
	r.preGenerated.swrGood = color.New(color.FgHiGreen)
	r.preGenerated.swrWarn = color.New(color.FgHiYellow)
	r.preGenerated.swrBad = color.New(color.FgHiWhite)
	r.preGenerated.swrBad.Add(color.BgRed)
	r.preGenerated.err = color.New(color.FgHiRed)
	return r
}

// Publish implements session.Observer.
func (r *Renderer) Publish(s types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tty {
		fmt.Fprintln(r.out, PlainLine(s))
		return
	}

	var b strings.Builder
	b.WriteString(eraseScreen)
	b.WriteString(crlf)
	b.WriteString("  " + r.preGenerated.title.Sprint(r.title) + crlf + crlf)
	swr := 0
	if s.Power != nil {
		swr = s.Power.SWR
	}
	for _, line := range StatusLines(s) {
		b.WriteString("  " + r.paint(line, swr) + crlf + crlf)
	}
	if s.Error != "" {
		b.WriteString("  " + r.preGenerated.err.Sprint(truncate(s.Error, r.cols-2)) + crlf)
	}
	b.WriteString(crlf + "  " + r.help + ":" + crlf)
	fmt.Fprint(r.out, b.String())
}

// paint colours the state tokens of a status line.
func (r *Renderer) paint(line string, swr int) string {
	line = strings.ReplaceAll(line, "[ON]", r.preGenerated.on)
	line = strings.ReplaceAll(line, "[OFF]", r.preGenerated.off)
	for _, tok := range []string{"[ANT1]", "[ANT2]", "[DUMMY]"} {
		line = strings.ReplaceAll(line, tok, r.preGenerated.selected.Sprint(tok))
	}
	if i := strings.Index(line, "SWR "); i >= 0 && swr > 0 {
		c := r.preGenerated.swrGood
		switch {
		case swr >= 200:
			c = r.preGenerated.swrBad
		case swr >= 150:
			c = r.preGenerated.swrWarn
		}
		line = line[:i] + c.Sprint(line[i:])
	}
	return line
}

// StatusLines renders the state of a snapshot as plain text.
func StatusLines(s types.Snapshot) []string {
	var lines []string
	if s.Relay != nil {
		lines = append(lines, FormatRelayPower(*s.Relay), FormatAntenna(*s.Relay))
	}
	if s.Tuner != nil {
		lines = append(lines, FormatTuner(*s.Tuner))
	}
	if s.Power != nil {
		lines = append(lines, FormatPower(*s.Power))
	}
	return lines
}

// PlainLine is the single line printed when output is not a terminal.
func PlainLine(s types.Snapshot) string {
	parts := append([]string{s.State}, StatusLines(s)...)
	if s.Error != "" {
		parts = append(parts, "error: "+s.Error)
	}
	return strings.Join(parts, " | ")
}

func FormatRelayPower(s types.RelayState) string {
	return fmt.Sprintf("Power   : Amp %5s, TRX %5s", onOff(s.Amp), onOff(s.TRX))
}

func FormatAntenna(s types.RelayState) string {
	switch {
	case s.DummyLoad:
		return "Antenna :  ant1   ant2  [DUMMY]"
	case s.AntennaSecondary:
		return "Antenna :  ant1  [ANT2]  dummy "
	default:
		return "Antenna : [ANT1]  ant2   dummy "
	}
}

func FormatTuner(s types.TunerState) string {
	return fmt.Sprintf("L= %3d, C = %3d, %s", s.Inductance, s.Capacitance, s.Network)
}

func FormatPower(p types.PowerReading) string {
	return fmt.Sprintf("FWD %4dW, REF %4dW, SWR %s", p.ForwardWatts, p.ReflectedWatts, calibration.FormatSWR(p.SWR))
}

func onOff(v bool) string {
	if v {
		return "[ON]"
	}
	return "[OFF]"
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
