package heartbeat

import "fmt"

// Status is the kind of result a delivery attempt produced.
type Status int

const (
	StatusDelivered      Status = iota + 1 // server answered 2xx
	StatusAccepted                         // queued by the beacon, delivery unconfirmed
	StatusRejected                         // server answered non-2xx
	StatusTransportError                   // no response: refused, blocked, timed out
	StatusNotConfigured                    // no usable API key, nothing was sent
	StatusThrottled                        // suppressed by the rate gate, nothing was sent
)

var statusNames = map[Status]string{
	StatusDelivered:      "delivered",
	StatusAccepted:       "accepted",
	StatusRejected:       "rejected",
	StatusTransportError: "transport_error",
	StatusNotConfigured:  "not_configured",
	StatusThrottled:      "throttled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Outcome is the result of one attempt or of a whole dispatch.
type Outcome struct {
	Status Status

	// Transport that produced the outcome ("proxy", "beacon", "direct"), if any.
	Transport string

	// Code is the HTTP status for Delivered and Rejected.
	Code int

	// Body is the response body for Rejected.
	Body string

	// Err describes the failure for every non-success status.
	Err error
}

// OK reports whether the heartbeat counts as sent. Accepted is treated as
// success even though nothing confirms delivery.
func (o Outcome) OK() bool {
	return o.Status == StatusDelivered || o.Status == StatusAccepted
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusDelivered:
		return fmt.Sprintf("%s via %s (%d)", o.Status, o.Transport, o.Code)
	case StatusAccepted:
		return fmt.Sprintf("%s by %s", o.Status, o.Transport)
	case StatusRejected:
		return fmt.Sprintf("%s by %s (%d)", o.Status, o.Transport, o.Code)
	default:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Status, o.Err)
		}
		return o.Status.String()
	}
}

// Delivered returns a success outcome for an HTTP transport.
func Delivered(transport string, code int) Outcome {
	return Outcome{Status: StatusDelivered, Transport: transport, Code: code}
}

// Accepted returns a success outcome for a fire-and-forget transport.
func Accepted(transport string) Outcome {
	return Outcome{Status: StatusAccepted, Transport: transport}
}

// Rejected returns a failure outcome for a non-2xx answer.
func Rejected(transport string, code int, body string, err error) Outcome {
	return Outcome{Status: StatusRejected, Transport: transport, Code: code, Body: body, Err: err}
}

// Failed returns a failure outcome for a transport that got no answer.
func Failed(transport string, err error) Outcome {
	return Outcome{Status: StatusTransportError, Transport: transport, Err: err}
}

// NotConfigured returns the outcome of a dispatch refused for lack of a key.
func NotConfigured(err error) Outcome {
	return Outcome{Status: StatusNotConfigured, Err: err}
}

// Throttled returns the outcome of an interaction the rate gate suppressed.
func Throttled() Outcome {
	return Outcome{Status: StatusThrottled}
}
