// Package heartbeat defines the activity report sent to WakaTime.
//
// # Overview
//
// A heartbeat starts as an Event (an instant plus a correlation id), becomes
// an immutable Request (URL, JSON body, ordered headers) and ends as an
// Outcome describing what the delivery chain achieved.
//
//	ev := heartbeat.NewEvent(time.Now())
//	req, err := heartbeat.NewRequest(ev, heartbeat.Params{
//	    URL:         settings.DefaultAPIURL,
//	    APIKey:      "waka_...",
//	    Project:     "Discord",
//	    MachineName: "laptop",
//	})
//
// # Wire Format
//
//	POST https://api.wakatime.com/api/v1/users/current/heartbeats
//	Authorization: Basic <key>
//	Content-Type: application/json
//	Content-Length: <utf-8 byte length of body>
//	X-Machine-Name: <machine>            (only when configured)
//
//	{"time":1700000000.123,"entity":"Discord","type":"app","project":"Discord","plugin":"..."}
//
// # Outcomes
//
// Delivered means a server answered 2xx. Accepted means the beacon queued the
// request for sending; nothing confirms it arrived. Both count as success.
package heartbeat
