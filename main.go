// Command t2i-backend serves text-to-image generation over HTTP and
// WebSocket, fanning each request out over a pool of image backends.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"t2i_backend/core"
	"t2i_backend/core/validation"
	"t2i_backend/logging"
	"t2i_backend/shutdown"
)

func main() {
	if handled, code := handleCommand(os.Args[1:], os.Stdout); handled {
		os.Exit(code)
	}
	os.Exit(run())
}

// run starts the server in the foreground or under the service manager and
// returns the process exit code.
func run() int {
	env, err := loadEnvironment()
	if err != nil {
		printConfigError(os.Stderr, err)
		return exitCodeFor(err)
	}
	defer env.logger.Sync()

	if !isInteractive() {
		if err := runService(env); err != nil {
			env.logger.Error("Service failed", zap.Error(err))
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}

	checks := validation.NewSuite().WithOutput(os.Stdout).Validate(env.config)
	env.logger.Info(checks.Summary())
	if !checks.Success {
		printConfigError(os.Stderr, checks.FirstError())
		return core.ExitCodeConfig
	}

	env.manager.Start()
	app, err := NewApp(env.config, env.logger, env.manager)
	if err != nil {
		env.logger.Error("Startup failed", zap.Error(err))
		printConfigError(os.Stderr, err)
		return exitCodeFor(err)
	}
	printBanner(os.Stdout, env.config, app.pool.Stats())

	if err := app.ListenAndRun(); err != nil {
		env.logger.Error("Server stopped with errors", zap.Error(err))
		return core.ExitCodeError
	}
	env.logger.Info("Goodbye!")
	return core.ExitCodeSuccess
}

// environment is what every run mode needs before the app is built.
type environment struct {
	config  *core.Config
	logger  *logging.Logger
	manager *shutdown.Manager
}

// loadEnvironment reads .env, the configuration and builds the logger.
func loadEnvironment() (*environment, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: cannot read .env: %v\n", err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Development: cfg.DevMode, FilePath: cfg.LogFile}
	if cfg.LogLevel != "" {
		level := logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
		opts.Level = &level
	}
	logger, err := logging.NewLogger(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("version", core.Version),
		zap.String("addr", cfg.Addr()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("db_path", cfg.DBPath),
		zap.String("output_path", cfg.OutputPath),
		zap.String("backends_file", cfg.BackendsFile),
		zap.Int("max_parallel", cfg.MaxParallel),
		zap.Duration("lease_timeout", cfg.LeaseTimeout),
		zap.Duration("ws_send_timeout", cfg.WSSendTimeout),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	manager := shutdown.NewManager(logger, shutdown.WithTimeout(cfg.ShutdownTimeout))
	return &environment{config: cfg, logger: logger, manager: manager}, nil
}

// runChecks loads the configuration and runs the startup checks only.
func runChecks(out io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "Warning: cannot read .env: %v\n", err)
	}
	cfg, err := core.LoadConfig()
	if err != nil {
		printConfigError(out, err)
		return exitCodeFor(err)
	}
	if !validation.NewSuite().WithOutput(out).Validate(cfg).Success {
		return core.ExitCodeConfig
	}
	return core.ExitCodeSuccess
}

func exitCodeFor(err error) int {
	if _, ok := core.IsConfigError(err); ok {
		return core.ExitCodeConfig
	}
	return core.ExitCodeError
}
