package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log output to stdout and, when filePath is set, to a
// lumberjack-rotated file.
//
// The file always receives JSON. The console receives the colored console
// encoding in development and JSON otherwise.
func NewMultiCore(level zapcore.Level, filePath string, rotation FileWriterConfig, isDev bool) (zapcore.Core, error) {
	consoleCore := zapcore.NewCore(consoleEncoder(isDev), zapcore.Lock(os.Stdout), level)
	if filePath == "" {
		return consoleCore, nil
	}

	if err := ensureLogDir(filePath); err != nil {
		return nil, err
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		NewFileWriterWithConfig(filePath, rotation),
		level,
	)
	return zapcore.NewTee(consoleCore, fileCore), nil
}

// NewMultiCoreWithWriters is NewMultiCore over caller-supplied writers.
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, zapcore.AddSync(io.Discard), zapcore.AddSync(&buf), false)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	return zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(isDev), consoleWriter, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level),
	)
}

func consoleEncoder(isDev bool) zapcore.Encoder {
	if isDev {
		return zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	}
	return zapcore.NewJSONEncoder(NewEncoderConfig())
}
