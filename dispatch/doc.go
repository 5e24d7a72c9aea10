// Package dispatch delivers one heartbeat through an ordered transport chain.
//
// The Dispatcher checks the API key, builds the request once, then tries each
// transport in order (proxy, beacon, direct by default) and stops at the first
// success. It never raises: every failure becomes the returned Outcome and,
// for a missing key, a user notification. Presenting the fallback on total
// failure is left to the caller.
//
// Chain decisions are logged at DEBUG and traced as one span per attempt.
package dispatch
