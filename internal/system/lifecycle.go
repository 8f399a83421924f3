// Package system wires config, logging, the device and the operator
// surfaces into one process run and maps its outcome to an exit code.
package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/ShackControl/internal/api/rest"
	"github.com/KevinKickass/ShackControl/internal/api/websocket"
	"github.com/KevinKickass/ShackControl/internal/auth"
	"github.com/KevinKickass/ShackControl/internal/config"
	"github.com/KevinKickass/ShackControl/internal/logging"
	"github.com/KevinKickass/ShackControl/internal/session"
	"github.com/KevinKickass/ShackControl/internal/telemetry"
	"github.com/KevinKickass/ShackControl/internal/types"
	"github.com/KevinKickass/ShackControl/internal/ui"
	"go.uber.org/zap"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitDevice = 2
	ExitFailed = 3
)

// Options are the command line settings shared by both binaries.
type Options struct {
	Kind         types.DeviceKind
	ConfigPath   string
	Device       string
	Verbose      bool
	LogFile      string
	Remote       bool
	RemoteListen string
	Simulate     bool
	IssueToken   string
	TokenScope   string
	WriteConfig  string

	Stdin  *os.File
	Stdout *os.File
	Stderr io.Writer
}

func (o *Options) defaults() {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.ConfigPath == "" {
		o.ConfigPath = config.DefaultPath()
	}
}

// Run executes one control session and returns the process exit code.
func Run(ctx context.Context, opts Options) int {
	opts.defaults()

	if opts.WriteConfig != "" {
		if err := config.WriteDefault(opts.WriteConfig); err != nil {
			fmt.Fprintf(opts.Stderr, "write config: %v\n", err)
			return ExitUsage
		}
		fmt.Fprintf(opts.Stderr, "default configuration written to %s\n", opts.WriteConfig)
		return ExitOK
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "config: %v\n", err)
		return ExitUsage
	}
	applyOverrides(cfg, opts)

	if opts.IssueToken != "" {
		return issueToken(cfg, opts)
	}

	logger, closeLog, err := logging.New(cfg.Logging, opts.Verbose)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "logging: %v\n", err)
		return ExitUsage
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := openController(opts.Kind, cfg, opts.Simulate, logger)
	if err != nil {
		logger.Error("Failed to open device", zap.String("device", string(opts.Kind)), zap.Error(err))
		if errors.Is(err, types.ErrDeviceNotFound) {
			fmt.Fprintf(opts.Stderr, "no %s device found\n", opts.Kind)
		} else {
			fmt.Fprintf(opts.Stderr, "open %s: %v\n", opts.Kind, err)
		}
		return ExitDevice
	}

	sess := session.New(ctrl, pollInterval(opts.Kind, cfg), logger)
	logger = logger.With(zap.String("session_id", sess.ID()))

	ready := false
	sess.AddObserver(session.ObserverFunc(func(s types.Snapshot) {
		if s.State == session.StateReady.String() {
			ready = true
		}
	}))
	sess.AddObserver(ui.NewRenderer(opts.Stdout, opts.Kind))

	stopSurfaces, err := startSurfaces(ctx, cfg, sess, logger)
	if err != nil {
		logger.Error("Failed to start remote panel", zap.Error(err))
		fmt.Fprintf(opts.Stderr, "remote panel: %v\n", err)
		ctrl.Close()
		return ExitUsage
	}
	defer stopSurfaces()

	keys, _, _ := ui.KeysFor(opts.Kind)
	kb, err := ui.OpenKeyboard(opts.Stdin, keys, logger)
	if err != nil {
		logger.Error("Failed to open keyboard", zap.Error(err))
		fmt.Fprintf(opts.Stderr, "keyboard: %v\n", err)
		ctrl.Close()
		return ExitUsage
	}
	defer kb.Restore()

	// headless with a remote surface: stdin is not needed
	if kb.Interactive() || !(cfg.Remote.Enabled || cfg.MQTT.Enabled) {
		go func() {
			if err := kb.Run(ctx, sess.Submit); err != nil && !errors.Is(err, session.ErrClosed) {
				logger.Debug("Keyboard stopped", zap.Error(err))
			}
		}()
	}

	runErr := sess.Run(ctx)
	kb.Restore()
	return exitCode(runErr, ready, opts.Stderr, logger)
}

func exitCode(err error, ready bool, stderr io.Writer, logger *zap.Logger) int {
	if err == nil {
		logger.Info("Session ended")
		return ExitOK
	}
	fmt.Fprintf(stderr, "\r\n%v\r\n", err)
	if !ready {
		logger.Error("Device failed during startup", zap.Error(err))
		return ExitDevice
	}
	logger.Error("Device failed", zap.Error(err))
	return ExitFailed
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Device != "" {
		cfg.Tuner.Device = opts.Device
	}
	if opts.LogFile != "" {
		cfg.Logging.File = opts.LogFile
	}
	if opts.Remote {
		cfg.Remote.Enabled = true
	}
	if opts.RemoteListen != "" {
		cfg.Remote.Enabled = true
		cfg.Remote.Listen = opts.RemoteListen
	}
}

// startSurfaces brings up the remote panel and MQTT telemetry when
// enabled. The returned func stops them.
func startSurfaces(ctx context.Context, cfg *config.Config, sess *session.Session, logger *zap.Logger) (func(), error) {
	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if cfg.Remote.Enabled {
		var tokens *auth.TokenHandler
		if cfg.Remote.AuthEnabled() {
			tokens = auth.NewTokenHandler(cfg.Remote.JWTSecret(), cfg.Remote.TokenTTL)
		} else {
			logger.Warn("Remote panel without authentication",
				zap.String("secret_env", cfg.Remote.JWTSecretEnv))
		}
		authMW := auth.NewMiddleware(tokens)

		hubCtx, cancelHub := context.WithCancel(ctx)
		hub := websocket.NewHub(sess, authMW, logger)
		go hub.Run(hubCtx)
		sess.AddObserver(hub)

		server := rest.NewServer(cfg.Remote, sess, logger, hub, authMW)
		if err := server.Start(); err != nil {
			cancelHub()
			return stopAll, err
		}
		stops = append(stops, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Remote.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Remote panel shutdown", zap.Error(err))
			}
			cancelHub()
		})
	}

	if cfg.MQTT.Enabled {
		pub := telemetry.NewPublisher(cfg.MQTT, sess, sess.ID(), logger)
		sess.AddObserver(pub)
		pub.Start()
		stops = append(stops, pub.Stop)
	}

	return stopAll, nil
}

func issueToken(cfg *config.Config, opts Options) int {
	if !cfg.Remote.AuthEnabled() {
		fmt.Fprintf(opts.Stderr, "issue token: %s must hold a secret of at least 32 characters\n", cfg.Remote.JWTSecretEnv)
		return ExitUsage
	}
	scope, err := auth.ParseScope(opts.TokenScope)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "issue token: %v\n", err)
		return ExitUsage
	}

	tokens := auth.NewTokenHandler(cfg.Remote.JWTSecret(), cfg.Remote.TokenTTL)
	token, claims, err := tokens.Issue(opts.IssueToken, scope)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "issue token: %v\n", err)
		return ExitUsage
	}
	fmt.Fprintln(opts.Stdout, token)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(opts.Stderr, "token %s for %s (%s) expires %s\n",
			claims.ID, claims.Operator, claims.Scope, claims.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return ExitOK
}
