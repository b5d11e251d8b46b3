package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"t2i_backend/backends"
	"t2i_backend/core"
	"t2i_backend/logging"
	"t2i_backend/shutdown"
)

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantHandled bool
		wantCode    int
		wantOutput  string
	}{
		{name: "no args", args: nil, wantHandled: false},
		{name: "unknown", args: []string{"serve-forever"}, wantHandled: false},
		{name: "help", args: []string{"help"}, wantHandled: true, wantOutput: "Usage: t2i-backend"},
		{name: "dash h", args: []string{"-h"}, wantHandled: true, wantOutput: "Commands:"},
		{name: "version", args: []string{"version"}, wantHandled: true, wantOutput: core.Version},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handled, code := handleCommand(tt.args, &out)
			if handled != tt.wantHandled {
				t.Fatalf("handled = %v, want %v", handled, tt.wantHandled)
			}
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("output %q does not contain %q", out.String(), tt.wantOutput)
			}
		})
	}
}

func TestCheckCommand(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("DATA_DIR", cfg.DataDir)
	t.Setenv("BACKENDS_FILE", cfg.BackendsFile)

	var out bytes.Buffer
	handled, code := handleCommand([]string{"check"}, &out)
	if !handled || code != core.ExitCodeSuccess {
		t.Fatalf("check = (%v, %d), want (true, %d)\n%s", handled, code, core.ExitCodeSuccess, out.String())
	}
	if !strings.Contains(out.String(), "1 placeholder") {
		t.Errorf("output does not list the backends file contents:\n%s", out.String())
	}

	t.Setenv("BACKENDS_FILE", writeBackends(t, "backends:\n  - type: nonexistent\n"))
	out.Reset()
	if _, code := handleCommand([]string{"check"}, &out); code != core.ExitCodeConfig {
		t.Errorf("check with an unknown backend type exit code = %d, want %d", code, core.ExitCodeConfig)
	}
}

func writeBackends(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backends.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExitCodeFor(t *testing.T) {
	if got := exitCodeFor(core.ErrMissingConfig("DB_PATH")); got != core.ExitCodeConfig {
		t.Errorf("config error exit code = %d, want %d", got, core.ExitCodeConfig)
	}
	if got := exitCodeFor(errors.New("boom")); got != core.ExitCodeError {
		t.Errorf("plain error exit code = %d, want %d", got, core.ExitCodeError)
	}
}

func TestPrintBannerAndConfigError(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	printBanner(&out, cfg, backends.PoolStats{Total: 2, Valid: 0})
	for _, want := range []string{cfg.Addr(), "0 of 2 valid", cfg.BackendsFile} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("banner missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	printConfigError(&out, core.ErrInvalidValue("T2I_PORT", "0", "must be between 1 and 65535"))
	for _, want := range []string{"INVALID_VALUE", "T2I_PORT", "Fix T2I_PORT"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config error output missing %q:\n%s", want, out.String())
		}
	}
}

// testConfig points every path into a temp dir and registers one
// placeholder backend.
func testConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	backendsFile := filepath.Join(dir, "backends.yaml")
	yaml := "backends:\n  - type: placeholder\n    settings:\n      delay: 1ms\n"
	if err := os.WriteFile(backendsFile, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := core.LoadConfigFrom(core.MapEnv(map[string]string{
		"DATA_DIR":      dir,
		"BACKENDS_FILE": backendsFile,
		"T2I_PORT":      "7801",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFrom() failed: %v", err)
	}
	return cfg
}

func TestAppServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	manager := shutdown.NewManager(logging.NewNop(),
		shutdown.WithTimeout(5*time.Second),
		shutdown.WithForceExit(func() {}))

	app, err := NewApp(cfg, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("NewApp() failed: %v", err)
	}
	if stats := app.pool.Stats(); stats.Valid != 1 {
		t.Fatalf("pool stats = %+v, want one valid backend", stats)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- app.Run(l) }()

	base := "http://" + l.Addr().String()
	resp, err := http.Post(base+"/API/GenerateText2Image", "application/json",
		strings.NewReader(`{"images":2,"prompt":"lighthouse","width":16,"height":16}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var body struct {
		Images []string `json:"images"`
		Error  string   `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if len(body.Images) != 2 {
		t.Errorf("images = %d (error %q), want 2", len(body.Images), body.Error)
	}

	manager.Trigger("test")
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after shutdown was triggered")
	}

	if err := app.database.Ping(t.Context()); err == nil {
		t.Error("database still open after shutdown")
	}
	if _, err := http.Get(base + "/health"); err == nil {
		t.Error("server still accepting requests after shutdown")
	}
}
