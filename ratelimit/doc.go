// Package ratelimit provides the cooldown gate that keeps a noisy
// interaction source from flooding the WakaTime API.
//
// # Usage
//
//	gate := ratelimit.NewGate(ratelimit.DefaultCooldown)
//
//	// On every click, keypress, document change...
//	if gate.Allow() {
//	    dispatcher.Dispatch(ctx, heartbeat.NewEvent(time.Now()))
//	}
//
// ShouldEmit and Record are also exposed separately for callers that need
// to decide and commit at different points.
//
// # Semantics
//
// After Record(T), ShouldEmit(t) is false for every t < T+cooldown and true
// from T+cooldown on. A gate that has never recorded always allows.
package ratelimit
