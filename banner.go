package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"t2i_backend/backends"
	"t2i_backend/core"
)

// printBanner writes the startup summary. Colors are dropped automatically
// when w is not a terminal.
func printBanner(w io.Writer, cfg *core.Config, stats backends.PoolStats) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgHiBlack)

	header.Fprintf(w, "T2I backend %s\n", core.Version)
	row := func(name, value string) {
		label.Fprintf(w, "  %-10s", name)
		fmt.Fprintln(w, value)
	}
	row("API", "http://"+cfg.Addr()+"/API/")
	row("Output", cfg.OutputPath)
	row("History", cfg.DBPath)
	row("Parallel", fmt.Sprintf("%d per request", cfg.MaxParallel))

	backendsLine := fmt.Sprintf("%d of %d valid", stats.Valid, stats.Total)
	label.Fprintf(w, "  %-10s", "Backends")
	if stats.Valid == 0 {
		color.New(color.FgYellow).Fprintln(w, backendsLine+" (add one via /API/AddNewBackend or "+cfg.BackendsFile+")")
	} else {
		color.New(color.FgGreen).Fprintln(w, backendsLine)
	}
}

// printConfigError shows a configuration problem with its suggested action.
func printConfigError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	if ce, ok := core.IsConfigError(err); ok {
		red.Fprintf(w, "Configuration error [%s]\n", ce.Code)
		fmt.Fprintf(w, "  %s\n", ce.Message)
		if ce.Action != "" {
			color.New(color.FgYellow).Fprintf(w, "  %s\n", ce.Action)
		}
		return
	}
	red.Fprintf(w, "Error: %v\n", err)
}
