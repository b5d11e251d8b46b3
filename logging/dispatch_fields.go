package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DispatchSummary describes one finished fan-out call.
type DispatchSummary struct {
	DispatchID string
	Requested  int
	Spawned    int
	Delivered  int
	BaseSeed   int64
	Window     int
	ErrorKind  string
	Duration   time.Duration
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s DispatchSummary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", s.DispatchID)
	enc.AddInt64("requested", int64(s.Requested))
	enc.AddInt64("spawned", int64(s.Spawned))
	enc.AddInt64("delivered", int64(s.Delivered))
	enc.AddInt64("base_seed", s.BaseSeed)
	enc.AddInt64("window", int64(s.Window))
	if s.ErrorKind != "" {
		enc.AddString("error_kind", s.ErrorKind)
	}
	enc.AddInt64("duration_ms", s.Duration.Milliseconds())
	return nil
}

// DispatchFields wraps a summary as a single "dispatch" object field.
//
//	logger.Info("dispatch finished", logging.DispatchFields(summary))
func DispatchFields(s DispatchSummary) zap.Field {
	return zap.Object("dispatch", s)
}

// LeaseFields are the fields logged around one backend lease.
func LeaseFields(taskIndex int, backendID int, wait time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int("task", taskIndex),
		zap.Int("backend_id", backendID),
		zap.Duration("lease_wait", wait),
	}
}
