// Package errors provides the structured error taxonomy used across wakabeat.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Transient: the next transport or a later heartbeat may succeed (network failures, timeouts)
//   - Permanent: nothing will change without user action (missing key, rejected request)
//   - Resource: a local resource could not be obtained (relay port already bound)
//   - Internal: unexpected failures indicating bugs
//
// # Error Codes
//
//   - NOT_CONFIGURED: no valid API key, no network call was made
//   - TRANSPORT: a network call failed before a response was received
//   - REJECTED: the server answered with a non-2xx status
//   - RELAY: the local relay could not start or forward
//   - TIMEOUT, CANCELED, INVALID_INPUT, INTERNAL
//
// # Usage
//
//	err := errors.New(errors.ErrCodeRejected, "heartbeat rejected",
//	    errors.WithTransport("direct"),
//	    errors.WithStatus(401))
//
//	if errors.Is(err, errors.ErrCodeNotConfigured) {
//	    // show the settings hint
//	}
//
// Errors serialize to JSON so they can be logged as a single field.
package errors
