package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestApplyFileWriterDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   FileWriterConfig
		want FileWriterConfig
	}{
		{
			name: "zero value",
			in:   FileWriterConfig{},
			want: FileWriterConfig{MaxSizeMB: DefaultMaxSizeMB, MaxBackups: DefaultMaxBackups, MaxAgeDays: DefaultMaxAgeDays},
		},
		{
			name: "negative sizes",
			in:   FileWriterConfig{MaxSizeMB: -1, MaxBackups: -1, MaxAgeDays: -1, Compress: true},
			want: FileWriterConfig{MaxSizeMB: DefaultMaxSizeMB, MaxBackups: DefaultMaxBackups, MaxAgeDays: DefaultMaxAgeDays, Compress: true},
		},
		{
			name: "explicit values kept",
			in:   FileWriterConfig{MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 1, LocalTime: true},
			want: FileWriterConfig{MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 1, LocalTime: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyFileWriterDefaults(tt.in); got != tt.want {
				t.Errorf("applyFileWriterDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if got := DefaultFileWriterConfig(); !got.Compress || got.MaxSizeMB != DefaultMaxSizeMB {
		t.Errorf("DefaultFileWriterConfig() = %+v", got)
	}
}

func TestFileWriterAppends(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "t2i.log")

	writers := []struct {
		name string
		new  func() zapcore.WriteSyncer
	}{
		{"default rotation", func() zapcore.WriteSyncer { return NewFileWriter(logPath) }},
		{"custom rotation", func() zapcore.WriteSyncer {
			return NewFileWriterWithConfig(logPath, FileWriterConfig{MaxSizeMB: 1, MaxBackups: 1})
		}},
	}

	var want string
	for _, w := range writers {
		line := w.name + "\n"
		writer := w.new()
		if n, err := writer.Write([]byte(line)); err != nil || n != len(line) {
			t.Fatalf("%s: Write() = %d, %v", w.name, n, err)
		}
		if err := writer.Sync(); err != nil {
			t.Errorf("%s: Sync() = %v", w.name, err)
		}
		want += line
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(content) != want {
		t.Errorf("file content = %q, want %q", content, want)
	}
}
