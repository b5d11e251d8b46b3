package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"t2i_backend/core"
	"t2i_backend/core/validation"
)

// program runs the App under the platform service manager (Windows SCM,
// systemd, launchd).
type program struct {
	env  *environment
	app  *App
	done chan error
}

// Start must not block.
func (p *program) Start(s service.Service) error {
	checks := validation.NewSuite().WithShowProgress(false).Validate(p.env.config)
	if !checks.Success {
		p.env.logger.Error(checks.Summary(), zap.Error(checks.FirstError()))
		return checks.FirstError()
	}
	p.env.logger.Info(checks.Summary())

	app, err := NewApp(p.env.config, p.env.logger, p.env.manager)
	if err != nil {
		return err
	}
	p.app = app
	p.done = make(chan error, 1)
	go func() { p.done <- app.ListenAndRun() }()
	return nil
}

// Stop asks the app to shut down and waits a little past its timeout.
func (p *program) Stop(s service.Service) error {
	if p.app == nil {
		return nil
	}
	p.env.manager.Trigger("service stop")
	select {
	case err := <-p.done:
		return err
	case <-time.After(p.env.config.ShutdownTimeout + 5*time.Second):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the installed service.
func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "t2i-backend",
		DisplayName: "T2I Backend",
		Description: "Text-to-image generation API fanning requests out over image backends",
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func newService(p *program) (service.Service, error) {
	s, err := service.New(p, serviceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// isInteractive reports whether the process runs from a terminal rather
// than under a service manager.
func isInteractive() bool {
	return service.Interactive()
}

// runService blocks until the service manager stops the process.
func runService(env *environment) error {
	s, err := newService(&program{env: env})
	if err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return fmt.Errorf("service run failed: %w", err)
	}
	return nil
}

// serviceActions are the subcommands forwarded to service.Control.
var serviceActions = map[string]string{
	"install":   "install",
	"uninstall": "uninstall",
	"remove":    "uninstall",
	"start":     "start",
	"stop":      "stop",
	"restart":   "restart",
}

// handleCommand runs a management subcommand from args (without the
// program name). It reports whether args named one, and the exit code.
func handleCommand(args []string, out io.Writer) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}

	switch cmd := args[0]; cmd {
	case "help", "-h", "--help", "-help":
		printUsage(out)
		return true, core.ExitCodeSuccess
	case "version", "--version":
		fmt.Fprintln(out, core.GetVersionInfo())
		return true, core.ExitCodeSuccess
	case "check":
		return true, runChecks(out)
	case "status":
		s, err := newService(&program{})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return true, core.ExitCodeError
		}
		status, err := s.Status()
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return true, core.ExitCodeError
		}
		fmt.Fprintln(out, statusText(status))
		return true, core.ExitCodeSuccess
	default:
		action, ok := serviceActions[cmd]
		if !ok {
			return false, 0
		}
		s, err := newService(&program{})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return true, core.ExitCodeError
		}
		if err := service.Control(s, action); err != nil {
			fmt.Fprintf(out, "Error: failed to %s service: %v\n", action, err)
			return true, core.ExitCodeError
		}
		fmt.Fprintf(out, "Service %s succeeded\n", action)
		return true, core.ExitCodeSuccess
	}
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Service is running"
	case service.StatusStopped:
		return "Service is stopped"
	default:
		return "Service status unknown"
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "T2I backend")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: t2i-backend [command]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  install    Install as a system service")
	fmt.Fprintln(out, "  uninstall  Remove the system service (alias: remove)")
	fmt.Fprintln(out, "  start      Start the system service")
	fmt.Fprintln(out, "  stop       Stop the system service")
	fmt.Fprintln(out, "  restart    Restart the system service")
	fmt.Fprintln(out, "  status     Show the service status")
	fmt.Fprintln(out, "  check      Run the startup checks and exit")
	fmt.Fprintln(out, "  version    Print version information")
	fmt.Fprintln(out, "  help       Show this help message")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run without a command to start the server in the foreground.")
}
