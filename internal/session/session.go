// Package session runs the single loop that owns a device controller.
// Keystrokes, remote commands and poll ticks are all funnelled through
// it, so the device only ever sees one exchange at a time.
package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Submit once the session has ended.
var ErrClosed = errors.New("session closed")

// Poll failures are logged as a warning once pollWarnAfter fail in a row,
// then every pollWarnEvery further failures.
const (
	pollWarnAfter = 5
	pollWarnEvery = 50
)

// Observer receives every changed snapshot. Publish is called from the
// session loop and must not block.
type Observer interface {
	Publish(s types.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s types.Snapshot)

func (f ObserverFunc) Publish(s types.Snapshot) { f(s) }

type request struct {
	action control.Action
	reply  chan error
}

type Session struct {
	id           uuid.UUID
	ctrl         control.Controller
	logger       *zap.Logger
	pollInterval time.Duration

	requests chan request
	done     chan struct{}

	mu        sync.RWMutex
	state     State
	snapshot  types.Snapshot
	observers []Observer

	closeOnce sync.Once
	closeErr  error

	pollFailures int
}

// New creates a session for ctrl. A pollInterval of 0 disables polling.
func New(ctrl control.Controller, pollInterval time.Duration, logger *zap.Logger) *Session {
	id := uuid.New()
	s := &Session{
		id:           id,
		ctrl:         ctrl,
		pollInterval: pollInterval,
		logger:       logger.With(zap.String("session_id", id.String()), zap.String("device", string(ctrl.Kind()))),
		requests:     make(chan request),
		done:         make(chan struct{}),
		state:        StateStarting,
	}
	s.snapshot = types.Snapshot{
		SessionID: id.String(),
		Device:    ctrl.Kind(),
		State:     StateStarting.String(),
		UpdatedAt: time.Now(),
	}
	return s
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) Kind() types.DeviceKind {
	return s.ctrl.Kind()
}

// AddObserver registers o. Must be called before Run.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Snapshot returns the latest published view.
func (s *Session) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Submit queues an action and waits for its result. The snapshot
// reflects the state after the action.
func (s *Session) Submit(ctx context.Context, a control.Action) (types.Snapshot, error) {
	req := request{action: a, reply: make(chan error, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return s.Snapshot(), ErrClosed
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}

	select {
	case err := <-req.reply:
		return s.Snapshot(), err
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Run reads the initial device state and serves requests until quit,
// a fatal device error or ctx cancellation. The device is closed on
// every exit path. A clean end returns nil.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.logger.Info("Session starting", zap.Duration("poll_interval", s.pollInterval))

	if err := s.ctrl.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			s.logger.Info("Session cancelled during startup")
			s.shutdown()
			return nil
		}
		s.logger.Error("Initial device read failed", zap.Error(err))
		s.fail(err)
		return err
	}
	if s.pollInterval > 0 {
		s.poll(ctx)
	}
	s.setState(StateReady, nil)

	var tick <-chan time.Time
	if s.pollInterval > 0 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session cancelled")
			s.shutdown()
			return nil

		case req := <-s.requests:
			if req.action == control.ActionQuit {
				req.reply <- nil
				s.logger.Info("Quit requested")
				s.shutdown()
				return nil
			}

			err := s.execute(ctx, req.action)
			req.reply <- err
			if err != nil && ctx.Err() != nil {
				s.logger.Info("Session cancelled",
					zap.String("action", string(req.action)))
				s.shutdown()
				return nil
			}
			if types.IsFatal(err) {
				s.fail(err)
				return err
			}

		case <-tick:
			s.poll(ctx)
		}
	}
}

func (s *Session) execute(ctx context.Context, a control.Action) error {
	if !s.ctrl.Supports(a) {
		return s.ctrl.Execute(ctx, a)
	}

	start := time.Now()
	err := s.ctrl.Execute(ctx, a)
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil {
		s.logger.Error("Action failed",
			zap.String("action", string(a)),
			zap.Bool("fatal", types.IsFatal(err)),
			zap.Error(err))
		s.publish(err)
		return err
	}

	s.logger.Info("Action executed",
		zap.String("action", string(a)),
		zap.Duration("duration", time.Since(start)))
	s.publish(nil)
	return nil
}

func (s *Session) poll(ctx context.Context) {
	if err := s.ctrl.Poll(ctx); err != nil {
		// Anzeige behält den letzten Wert
		if ctx.Err() != nil {
			return
		}
		s.pollFailures++
		n := s.pollFailures
		if n == pollWarnAfter || (n > pollWarnAfter && (n-pollWarnAfter)%pollWarnEvery == 0) {
			s.logger.Warn("Power polling failing",
				zap.Int("consecutive_failures", n),
				zap.Error(err))
		}
		return
	}
	if s.pollFailures >= pollWarnAfter {
		s.logger.Info("Power polling recovered",
			zap.Int("failed_polls", s.pollFailures))
	}
	s.pollFailures = 0
	s.publish(nil)
}

func (s *Session) fail(err error) {
	s.setState(StateFailed, err)
	s.closeDevice()
	s.setState(StateClosed, err)
}

func (s *Session) shutdown() {
	s.closeDevice()
	s.setState(StateClosed, nil)
}

func (s *Session) closeDevice() {
	s.closeOnce.Do(func() {
		s.closeErr = s.ctrl.Close()
		if s.closeErr != nil {
			s.logger.Warn("Closing device failed", zap.Error(s.closeErr))
		}
		s.logger.Info("Device released")
	})
}

func (s *Session) setState(state State, cause error) {
	s.mu.Lock()
	if err := ValidateTransition(s.state, state); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	previous := s.state
	s.state = state
	s.mu.Unlock()

	s.logger.Info("Session state changed",
		zap.Stringer("state", state),
		zap.Stringer("previous_state", previous))
	s.publish(cause)
}

// publish rebuilds the snapshot and hands it to observers if anything
// but the timestamp changed.
func (s *Session) publish(cause error) {
	s.mu.Lock()
	next := types.Snapshot{
		SessionID: s.id.String(),
		State:     s.state.String(),
	}
	s.ctrl.Fill(&next)
	if cause != nil {
		next.Error = cause.Error()
	}

	prev := s.snapshot
	prev.UpdatedAt = time.Time{}
	if reflect.DeepEqual(prev, next) {
		s.mu.Unlock()
		return
	}

	next.UpdatedAt = time.Now()
	s.snapshot = next
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.Publish(next)
	}
}
