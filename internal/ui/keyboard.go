package ui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/terminal"
)

// SubmitFunc hands an action to the session.
type SubmitFunc func(ctx context.Context, a control.Action) (types.Snapshot, error)

// Keyboard reads single keystrokes. On a terminal it switches to raw
// mode so keys arrive without Enter.
type Keyboard struct {
	in       io.Reader
	keys     Keymap
	logger   *zap.Logger
	fd       int
	oldState *terminal.State
}

func OpenKeyboard(in *os.File, keys Keymap, logger *zap.Logger) (*Keyboard, error) {
	k := &Keyboard{in: in, keys: keys, logger: logger, fd: int(in.Fd())}

	if isatty.IsTerminal(in.Fd()) {
		state, err := terminal.MakeRaw(k.fd)
		if err != nil {
			return nil, err
		}
		k.oldState = state
	}
	return k, nil
}

// Interactive reports whether keys come from a terminal in raw mode.
func (k *Keyboard) Interactive() bool {
	return k.oldState != nil
}

// Restore puts the terminal back into its previous mode.
func (k *Keyboard) Restore() error {
	if k.oldState == nil {
		return nil
	}
	err := terminal.Restore(k.fd, k.oldState)
	k.oldState = nil
	return err
}

// Run feeds mapped keys into submit until quit, end of input or a closed
// session. Unmapped keys are ignored.
func (k *Keyboard) Run(ctx context.Context, submit SubmitFunc) error {
	return readKeys(ctx, k.in, k.keys, submit, k.logger)
}

func readKeys(ctx context.Context, in io.Reader, keys Keymap, submit SubmitFunc, logger *zap.Logger) error {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n == 1 {
			action, ok := keys[buf[0]]
			if !ok {
				continue
			}
			if _, err := submit(ctx, action); err != nil {
				logger.Debug("Key action failed",
					zap.String("action", string(action)),
					zap.Error(err))
				if types.IsFatal(err) || ctx.Err() != nil {
					return err
				}
			}
			if action == control.ActionQuit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// stdin zu: wie quit behandeln
				_, qerr := submit(ctx, control.ActionQuit)
				return qerr
			}
			return err
		}
	}
}
