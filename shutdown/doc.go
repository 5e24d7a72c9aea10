// Package shutdown runs teardown steps in ordered phases.
//
// Steps register with a phase number; lower phases run first and steps in
// the same phase run concurrently. The plugin runtime uses it so that the
// interaction listener is detached before the relay stops, and the relay
// stops before the beacon drains.
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.RegisterFuncWithPhase("listener", unregister, 10)
//	coord.RegisterFuncWithPhase("relay", relay.Stop, 20)
//	result, err := coord.Shutdown(ctx)
//
// A coordinator runs once; later calls return ErrAlreadyShutdown.
package shutdown
