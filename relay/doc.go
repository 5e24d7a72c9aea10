// Package relay runs a loopback HTTP server that forwards heartbeats to the
// WakaTime API.
//
// Hosts that cannot reach the API directly post to
// http://127.0.0.1:<port>/heartbeat instead. Only POST /heartbeat is served;
// the body and a fixed set of headers (Content-Type, Authorization,
// X-Machine-Name) are forwarded, and the upstream status and body are relayed
// back as text/plain.
//
// A Manager owns at most one Server, points the proxy setting at it once it
// listens, and reports start failures as notifications instead of errors the
// host has to handle.
package relay
