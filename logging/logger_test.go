package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewFromZap(zap.New(core)), logs
}

func TestNewLogger(t *testing.T) {
	debug := zapcore.DebugLevel
	warn := zapcore.WarnLevel

	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantInfo  bool
	}{
		{name: "production defaults to info", opts: Options{}, wantInfo: true},
		{name: "development defaults to debug", opts: Options{Development: true}, wantDebug: true, wantInfo: true},
		{name: "explicit level wins", opts: Options{Development: true, Level: &warn}},
		{name: "explicit debug in production", opts: Options{Level: &debug}, wantDebug: true, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.opts)
			if err != nil {
				t.Fatalf("NewLogger() failed: %v", err)
			}
			if got := logger.Zap().Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := logger.Zap().Core().Enabled(zapcore.InfoLevel); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if logger.IsDevelopment() != tt.opts.Development {
				t.Errorf("IsDevelopment() = %v, want %v", logger.IsDevelopment(), tt.opts.Development)
			}
		})
	}
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "t2i.log")

	logger, err := NewLogger(Options{FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	if logger.LogFilePath() != logPath {
		t.Errorf("LogFilePath() = %q, want %q", logger.LogFilePath(), logPath)
	}

	logger.Info("backend added", zap.Int("backend_id", 3), zap.String("api_key", "sk-abcdefghijklmnopqrstuvwxyz"))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %s", content)
	}
	if entry[FieldMessage] != "backend added" {
		t.Errorf("message = %v", entry[FieldMessage])
	}
	if entry["api_key"] != RedactedPlaceholder {
		t.Errorf("api_key = %v, want %s", entry["api_key"], RedactedPlaceholder)
	}
}

func TestNewLoggerInvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogger(Options{FilePath: filepath.Join(blocker, "t2i.log")}); err == nil {
		t.Error("NewLogger() under a regular file succeeded, want error")
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
}

func TestLoggerRedactsStructuredFields(t *testing.T) {
	tests := []struct {
		name  string
		field zap.Field
		want  string
	}{
		{"sensitive key", zap.String("OPENAI_API_KEY", "sk-whatever"), RedactedPlaceholder},
		{"secret inside value", zap.String("error", "call failed: api_key=supersecretvalue"), "call failed: " + RedactedPlaceholder},
		{"plain value", zap.String("address", "http://gpu-box:7860"), "http://gpu-box:7860"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := newObserved(zapcore.InfoLevel)
			logger.Info("msg", tt.field)

			ctx := logs.All()[0].ContextMap()
			if got := ctx[tt.field.Key]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.field.Key, got, tt.want)
			}
		})
	}
}

func TestLoggerRedactsKeysAndValues(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.Infow("backend edited", "id", 2, "api_key", "sk-abcdefghijklmnopqrstuvwxyz", "address", "http://x")
	logger.Warnw("backend invalid", "password", "hunter2hunter2")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if got := entries[1].ContextMap()["password"]; got != RedactedPlaceholder {
		t.Errorf("password = %v, want redacted", got)
	}
	ctx := entries[0].ContextMap()
	if ctx["api_key"] != RedactedPlaceholder {
		t.Errorf("api_key = %v, want redacted", ctx["api_key"])
	}
	if ctx["address"] != "http://x" {
		t.Errorf("address = %v", ctx["address"])
	}
	if ctx["id"] != int64(2) {
		t.Errorf("id = %v (%T)", ctx["id"], ctx["id"])
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	child := logger.Named("pool").With(zap.String("token", "tok=abcdefghijkl"), zap.Int("backend_id", 1))
	child.Info("leased")

	entry := logs.All()[0]
	if entry.LoggerName != "pool" {
		t.Errorf("LoggerName = %q, want pool", entry.LoggerName)
	}
	ctx := entry.ContextMap()
	if ctx["token"] != RedactedPlaceholder {
		t.Errorf("token = %v, want redacted", ctx["token"])
	}
	if ctx["backend_id"] != int64(1) {
		t.Errorf("backend_id = %v", ctx["backend_id"])
	}
}

func TestNilAndNopLoggers(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil Sync() = %v", err)
	}

	NewNop().Info("discarded")
	if NewFromZap(nil).Zap() == nil {
		t.Error("NewFromZap(nil) has no zap logger")
	}
}

func TestDispatchFields(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.Info("dispatch finished", DispatchFields(DispatchSummary{
		DispatchID: "abc",
		Requested:  4,
		Spawned:    4,
		Delivered:  3,
		BaseSeed:   17,
		Window:     2,
		ErrorKind:  "generation_failed",
		Duration:   1500 * time.Millisecond,
	}))
	logger.Info("leased", LeaseFields(1, 7, 20*time.Millisecond)...)

	entries := logs.All()
	dispatch, ok := entries[0].ContextMap()["dispatch"].(map[string]any)
	if !ok {
		t.Fatalf("dispatch field = %#v", entries[0].ContextMap()["dispatch"])
	}
	checks := map[string]any{
		"id":          "abc",
		"requested":   int64(4),
		"spawned":     int64(4),
		"delivered":   int64(3),
		"window":      int64(2),
		"base_seed":   int64(17),
		"error_kind":  "generation_failed",
		"duration_ms": int64(1500),
	}
	for k, want := range checks {
		if dispatch[k] != want {
			t.Errorf("dispatch.%s = %v (%T), want %v", k, dispatch[k], dispatch[k], want)
		}
	}

	lease := entries[1].ContextMap()
	if lease["task"] != int64(1) || lease["backend_id"] != int64(7) {
		t.Errorf("lease fields = %v", lease)
	}
}
