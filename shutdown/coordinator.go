package shutdown

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Coordinator runs registered steps once, phase by phase.
type Coordinator struct {
	config Config

	mu       sync.Mutex
	handlers []registration
	started  bool
	done     chan struct{}
	result   *Result
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config Config) *Coordinator {
	d := DefaultConfig()
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = d.DefaultTimeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = d.DefaultPhase
	}
	return &Coordinator{config: config, done: make(chan struct{})}
}

// Register adds a step in the default phase.
func (c *Coordinator) Register(name string, h Handler) {
	c.RegisterWithPhase(name, h, c.config.DefaultPhase)
}

// RegisterWithPhase adds a step. Lower phases run first.
func (c *Coordinator) RegisterWithPhase(name string, h Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: h, phase: phase})
}

// RegisterFuncWithPhase adds a function step.
func (c *Coordinator) RegisterFuncWithPhase(name string, fn func(ctx context.Context) error, phase int) {
	c.RegisterWithPhase(name, Func(fn), phase)
}

// Shutdown runs every step. It returns the result and its Err.
func (c *Coordinator) Shutdown(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyShutdown
	}
	c.started = true
	handlers := append([]registration(nil), c.handlers...)
	c.mu.Unlock()

	result := c.run(ctx, handlers)

	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
	close(c.done)
	return result, result.Err
}

// ShutdownWithTimeout runs Shutdown under a deadline; 0 uses DefaultTimeout.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// Done is closed once Shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Result returns the shutdown result, or nil before Done.
func (c *Coordinator) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Coordinator) run(ctx context.Context, handlers []registration) *Result {
	start := time.Now()
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	var errs []error

	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			errs = append(errs, ErrTimeout)
			break
		}

		phaseResults := c.runPhase(ctx, group)
		result.Results = append(result.Results, phaseResults...)

		failed := false
		for _, hr := range phaseResults {
			if hr.Err != nil {
				errs = append(errs, hr.Err)
				failed = true
			}
		}
		if failed && !c.config.ContinueOnError {
			break
		}
	}

	result.Err = errors.Join(errs...)
	result.TotalDuration = time.Since(start)
	return result
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup
	for i, reg := range group {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()
			begin := time.Now()
			err := r.handler.OnShutdown(ctx)
			hr := HandlerResult{Name: r.name, Phase: r.phase, Duration: time.Since(begin), Err: err}
			results[idx] = hr
			if c.config.OnProgress != nil {
				c.config.OnProgress(hr)
			}
		}(i, reg)
	}
	wg.Wait()
	return results
}

// groupByPhase splits handlers, already sorted, into runs of equal phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i := 0; i < len(handlers); {
		j := i
		for j < len(handlers) && handlers[j].phase == handlers[i].phase {
			j++
		}
		groups = append(groups, handlers[i:j])
		i = j
	}
	return groups
}
