package runner

import "fmt"

// SetupError is a failed handshake. In fail-fast mode it aborts the run.
type SetupError struct {
	Conn int
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("connection %d: handshake: %v", e.Conn, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// FlushError is a failed final flush. It aborts the run.
type FlushError struct {
	Conn int
	Err  error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("connection %d: %v", e.Conn, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
