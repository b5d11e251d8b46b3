// Package validation runs the startup checks printed before the server
// starts listening.
package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"t2i_backend/backends"
	"t2i_backend/core"
)

// StepStatus is the outcome of one check.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Step is one executed check.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// Result is the outcome of a whole suite run. Warnings do not fail it.
type Result struct {
	Steps    []Step
	Passed   int
	Failed   int
	Warnings int
	Skipped  int
	Duration time.Duration
	Success  bool
}

// FirstError returns the error of the first failed step, or nil.
func (r Result) FirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a one-line description for logs.
func (r Result) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Startup checks passed: ")
	} else {
		sb.WriteString("Startup checks failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d passed", r.Passed, len(r.Steps))
	if r.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.Failed)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}

// checkFunc reports a status, a short message and an optional error.
type checkFunc func() (StepStatus, string, error)

// Suite checks the filesystem and backends file a Config points at.
type Suite struct {
	output       io.Writer
	registry     *backends.Registry
	minFree      int64
	showProgress bool
	failFast     bool
}

// NewSuite prints to stdout and knows the default backend types.
func NewSuite() *Suite {
	return &Suite{
		output:       os.Stdout,
		registry:     backends.DefaultRegistry(),
		minFree:      DefaultMinFreeSpace,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithRegistry sets the backend types the backends file is checked against.
func (s *Suite) WithRegistry(r *backends.Registry) *Suite {
	s.registry = r
	return s
}

// WithMinFreeSpace sets the free bytes required under the output directory.
func (s *Suite) WithMinFreeSpace(n int64) *Suite {
	s.minFree = n
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// WithFailFast stops at the first failed step.
func (s *Suite) WithFailFast(failFast bool) *Suite {
	s.failFast = failFast
	return s
}

// Validate runs every check against cfg.
func (s *Suite) Validate(cfg *core.Config) Result {
	start := time.Now()
	if s.showProgress {
		s.printHeader("Startup Checks")
	}

	checks := []struct {
		name string
		fn   checkFunc
	}{
		{"Data directory", func() (StepStatus, string, error) {
			if err := CheckWritableDir(cfg.DataDir); err != nil {
				return StepFailed, "", err
			}
			return StepPassed, cfg.DataDir, nil
		}},
		{"Output directory", func() (StepStatus, string, error) {
			if err := CheckWritableDir(cfg.OutputPath); err != nil {
				return StepFailed, "", err
			}
			return StepPassed, cfg.OutputPath, nil
		}},
		{"Disk space", func() (StepStatus, string, error) {
			info, err := CheckDiskSpace(cfg.OutputPath, s.minFree)
			if err != nil {
				// low space still lets the server answer inline requests
				return StepWarning, "", err
			}
			return StepPassed, FormatBytes(info.Free) + " free", nil
		}},
		{"Backends file", func() (StepStatus, string, error) {
			summary, err := CheckBackendsFile(cfg.BackendsFile, s.registry)
			switch {
			case err != nil:
				return StepFailed, "", err
			case summary.Missing:
				return StepWarning, cfg.BackendsFile + " not found, starting with no backends", nil
			case len(summary.Unknown) > 0:
				return StepFailed, "", fmt.Errorf("unknown backend types: %s", strings.Join(summary.Unknown, ", "))
			case summary.Total() == 0:
				return StepWarning, "no backends configured", nil
			}
			return StepPassed, summary.String(), nil
		}},
		{"Model root", func() (StepStatus, string, error) {
			if cfg.ModelRoot == "" {
				return StepSkipped, "not configured", nil
			}
			if err := CheckDirExists(cfg.ModelRoot); err != nil {
				return StepWarning, "", err
			}
			return StepPassed, cfg.ModelRoot, nil
		}},
	}

	steps := make([]Step, 0, len(checks))
	for _, check := range checks {
		step := s.runStep(check.name, check.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// runStep executes a check with timing and progress output.
func (s *Suite) runStep(name string, fn checkFunc) Step {
	if s.showProgress {
		fmt.Fprintf(s.output, "  ◌ %s...", name)
	}

	start := time.Now()
	status, message, err := fn()
	step := Step{
		Name:    name,
		Status:  status,
		Message: message,
		Error:   err,
		Latency: time.Since(start),
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func buildResult(steps []Step, start time.Time) Result {
	result := Result{Steps: steps, Duration: time.Since(start), Success: true}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.Passed++
		case StepFailed:
			result.Failed++
			result.Success = false
		case StepWarning:
			result.Warnings++
		case StepSkipped:
			result.Skipped++
		}
	}
	return result
}

func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *Suite) printStep(step Step) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Error != nil && (step.Status == StepFailed || step.Status == StepWarning) {
		clr.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *Suite) printSummary(result Result) {
	fmt.Fprintln(s.output)
	if result.Success {
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(s.output, "━━━ Checks Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d passed in %v)",
			result.Passed, len(result.Steps), result.Duration.Round(time.Millisecond))
		ok.Fprintln(s.output, " ━━━")
	} else {
		fail := color.New(color.FgRed, color.Bold)
		fail.Fprintf(s.output, "━━━ Checks Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.Passed, result.Failed)
		fail.Fprintln(s.output, " ━━━")
	}
	fmt.Fprintln(s.output)
}
