package t2i

import "sync/atomic"

// ErrorLatch holds the first error of a dispatch call. Later writes are
// ignored. The zero value is an unset latch.
type ErrorLatch struct {
	err atomic.Pointer[Error]
}

// Set stores err if the latch is still unset and reports whether it did.
func (l *ErrorLatch) Set(err *Error) bool {
	if err == nil {
		return false
	}
	return l.err.CompareAndSwap(nil, err)
}

// Load returns the latched error or nil.
func (l *ErrorLatch) Load() *Error {
	return l.err.Load()
}
