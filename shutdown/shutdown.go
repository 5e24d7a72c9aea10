package shutdown

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates the context ended before every phase ran.
	ErrTimeout = errors.New("shutdown timeout exceeded")
)

// Handler is implemented by components with teardown work.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult is the result of one step.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the result of a whole shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult

	// Err joins every step error, or is ErrTimeout.
	Err error
}

// FailedHandlers returns the names of steps that failed.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// Config configures a Coordinator.
type Config struct {
	// DefaultTimeout bounds ShutdownWithTimeout(0).
	// Default: 10 seconds
	DefaultTimeout time.Duration

	// DefaultPhase is assigned by Register.
	// Default: 100
	DefaultPhase int

	// ContinueOnError runs later phases after a failing step.
	// Default: true
	ContinueOnError bool

	// OnProgress is called as each step completes.
	OnProgress func(HandlerResult)
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  10 * time.Second,
		DefaultPhase:    100,
		ContinueOnError: true,
	}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
