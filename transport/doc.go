// Package transport delivers heartbeat requests.
//
// # Overview
//
// Three transports share one interface and are tried in order by the
// dispatcher:
//
//   - Proxy: POST to a user-configured URL, usually the local relay
//   - Beacon: fire-and-forget queue drained by a background sender
//   - Direct: POST to the WakaTime API
//
// # Usage
//
//	direct := transport.NewDirect(transport.DefaultConfig())
//	out := direct.Send(ctx, req)
//	if !out.OK() {
//	    // fall through to the next transport
//	}
//
// # Outcomes
//
// Send never returns an error. Every failure is reported as a
// heartbeat.Outcome carrying a structured *errors.Error: TRANSPORT when no
// response arrived, REJECTED for a non-2xx answer, TIMEOUT when the attempt
// deadline passed.
//
// # Thread Safety
//
// All transports are safe for concurrent use.
package transport
