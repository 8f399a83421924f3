package tuner

import (
	"bytes"
	"fmt"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// Kommando-Präfix, danach ein Zeichen für die Funktion
const Magic = "tu0101"

type Command byte

const (
	CmdSet   Command = 's'
	CmdRead  Command = 'r'
	CmdPower Command = 'p'
	CmdTest  Command = 't'
)

// MinResponse is the number of bytes read before draining to the newline.
const MinResponse = 11

// maxResponse bounds the drain loop.
const maxResponse = 64

var ackPrefix = []byte("ok")

type FieldKind int

const (
	FieldDecimal FieldKind = iota
	FieldFlag
)

// Field is a fixed position inside a response frame.
type Field struct {
	Name   string
	Offset int
	Width  int
	Kind   FieldKind
}

func (f Field) end() int {
	return f.Offset + f.Width
}

// Layout describes where the two numeric fields and the flag sit in a
// response. Status responses carry L, C, network; power responses carry
// reflected, forward and an unused flag.
type Layout struct {
	Name   string
	First  Field
	Second Field
	Flag   Field
}

var (
	// PackedLayout: "ok" LLL CCC N
	PackedLayout = Layout{
		Name:   "packed",
		First:  Field{Name: "first", Offset: 2, Width: 3, Kind: FieldDecimal},
		Second: Field{Name: "second", Offset: 5, Width: 3, Kind: FieldDecimal},
		Flag:   Field{Name: "flag", Offset: 8, Width: 1, Kind: FieldFlag},
	}

	// SeparatedLayout: "ok" LLLx CCCx N, each number followed by one
	// separator, e.g. "ok005 010 0". A leading blank is tolerated too.
	SeparatedLayout = Layout{
		Name:   "separated",
		First:  Field{Name: "first", Offset: 2, Width: 4, Kind: FieldDecimal},
		Second: Field{Name: "second", Offset: 6, Width: 4, Kind: FieldDecimal},
		Flag:   Field{Name: "flag", Offset: 10, Width: 1, Kind: FieldFlag},
	}
)

// LayoutByName returns one of the known response layouts.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", PackedLayout.Name:
		return PackedLayout, nil
	case SeparatedLayout.Name:
		return SeparatedLayout, nil
	default:
		return Layout{}, fmt.Errorf("unknown frame layout: %q", name)
	}
}

// MinLength is the shortest response that holds every field.
func (l Layout) MinLength() int {
	n := l.First.end()
	if e := l.Second.end(); e > n {
		n = e
	}
	if e := l.Flag.end(); e > n {
		n = e
	}
	return n
}

// BuildCommand erstellt ein Kommando ohne Parameter.
func BuildCommand(cmd Command) []byte {
	return []byte(fmt.Sprintf("%s%c", Magic, cmd))
}

// BuildSetCommand erstellt das Kommando zum Setzen von L, C und Netzwerk.
// No terminator is appended.
func BuildSetCommand(s types.TunerState) []byte {
	return []byte(fmt.Sprintf("%s%c%03d%03d%d", Magic, CmdSet, s.Inductance, s.Capacitance, int(s.Network)))
}

// Response holds the positional fields of a tuner answer.
type Response struct {
	First  int
	Second int
	Flag   byte
}

// CheckAck validates the "ok" prefix.
func CheckAck(buf []byte) error {
	if !bytes.HasPrefix(buf, ackPrefix) {
		return types.NewDeviceError("parse", types.ErrProtocol, fmt.Errorf("bad response: %q", buf))
	}
	return nil
}

// ParseResponse checks the prefix and reads the fields of l. A frame
// shorter than the layout is a protocol error.
func ParseResponse(buf []byte, l Layout) (Response, error) {
	var r Response
	if err := CheckAck(buf); err != nil {
		return r, err
	}
	if len(buf) < l.MinLength() {
		return r, types.NewDeviceError("parse", types.ErrProtocol,
			fmt.Errorf("short response: %d bytes, layout %s needs %d", len(buf), l.Name, l.MinLength()))
	}

	var err error
	if r.First, err = parseDecimal(buf, l.First); err != nil {
		return r, err
	}
	if r.Second, err = parseDecimal(buf, l.Second); err != nil {
		return r, err
	}
	r.Flag = buf[l.Flag.Offset]
	return r, nil
}

// ParseStatus decodes a read/set answer into a tuner state.
func ParseStatus(buf []byte, l Layout) (types.TunerState, error) {
	r, err := ParseResponse(buf, l)
	if err != nil {
		return types.TunerState{}, err
	}

	s := types.TunerState{
		Inductance:  r.First,
		Capacitance: r.Second,
		Network:     types.NetworkLoZ,
	}
	if r.Flag == '0' {
		s.Network = types.NetworkHiZ
	}
	if s != s.Clamp() {
		return types.TunerState{}, types.NewDeviceError("parse", types.ErrProtocol,
			fmt.Errorf("setting out of range: L=%d C=%d", s.Inductance, s.Capacitance))
	}
	return s, nil
}

// ParsePower decodes a power answer. The tuner sends reflected first.
func ParsePower(buf []byte, l Layout) (fwd, ref int, err error) {
	r, err := ParseResponse(buf, l)
	if err != nil {
		return 0, 0, err
	}
	return r.Second, r.First, nil
}

// parseDecimal skips leading blanks and reads digits up to the end of the
// field or the first non-digit.
func parseDecimal(buf []byte, f Field) (int, error) {
	raw := buf[f.Offset:f.end()]
	i := 0
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t') {
		i++
	}

	v, digits := 0, 0
	for ; i < len(raw) && raw[i] >= '0' && raw[i] <= '9'; i++ {
		v = v*10 + int(raw[i]-'0')
		digits++
	}
	if digits == 0 {
		return 0, types.NewDeviceError("parse", types.ErrProtocol,
			fmt.Errorf("field %s: no digits in %q", f.Name, raw))
	}
	return v, nil
}
