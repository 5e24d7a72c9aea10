package heartbeat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/wakabeat/credentials"
)

const (
	// Entity names the host application being tracked.
	Entity = "Discord"

	// Type is the WakaTime entity type for application heartbeats.
	Type = "app"

	// Plugin identifies this client to WakaTime.
	Plugin = "vencord/version discord-wakatime/v0.0.1"

	// DefaultProject is reported when no project name is given.
	DefaultProject = "Discord"
)

// Header names used on every request.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderMachineName   = "X-Machine-Name"

	ContentTypeJSON = "application/json"
)

// ErrEmptyURL is returned by NewRequest when no target URL is given.
var ErrEmptyURL = errors.New("heartbeat url is empty")

// Event is a single qualifying user interaction.
type Event struct {
	// ID correlates log lines and spans for one heartbeat.
	ID string

	// Time is when the interaction happened.
	Time time.Time
}

// NewEvent creates an event at t with a fresh id.
func NewEvent(t time.Time) Event {
	return Event{ID: uuid.New().String(), Time: t}
}

// Seconds returns the event time as fractional epoch seconds.
func (e Event) Seconds() float64 {
	return float64(e.Time.Unix()) + float64(e.Time.Nanosecond())/1e9
}

// Payload is the JSON body of a heartbeat.
type Payload struct {
	Time    float64 `json:"time"`
	Entity  string  `json:"entity"`
	Type    string  `json:"type"`
	Project string  `json:"project"`
	Plugin  string  `json:"plugin"`
}

// Marshal serializes a payload to JSON.
func (p *Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal deserializes a payload from JSON.
func Unmarshal(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Header is one request header. Requests keep headers ordered so that
// rendered fallback commands are stable.
type Header struct {
	Name  string
	Value string
}

// Request is the transport-independent form of one heartbeat delivery.
// It is built once per dispatch and never modified afterwards.
type Request struct {
	URL     string
	Body    string
	Headers []Header
}

// Params carries the settings a request is built from.
type Params struct {
	URL         string
	APIKey      string
	Project     string
	MachineName string
}

// NewRequest builds the request for ev.
func NewRequest(ev Event, p Params) (*Request, error) {
	if p.URL == "" {
		return nil, ErrEmptyURL
	}
	project := p.Project
	if project == "" {
		project = DefaultProject
	}

	payload := Payload{
		Time:    ev.Seconds(),
		Entity:  Entity,
		Type:    Type,
		Project: project,
		Plugin:  Plugin,
	}
	data, err := payload.Marshal()
	if err != nil {
		return nil, err
	}
	body := string(data)

	headers := []Header{
		{HeaderAuthorization, credentials.Authorization(p.APIKey)},
		{HeaderContentType, ContentTypeJSON},
		{HeaderContentLength, strconv.Itoa(len(body))},
	}
	if p.MachineName != "" {
		headers = append(headers, Header{HeaderMachineName, p.MachineName})
	}

	return &Request{URL: p.URL, Body: body, Headers: headers}, nil
}

// Header returns the value of the named header, or "".
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			return h.Value
		}
	}
	return ""
}

// HeaderMap returns the headers as a map, for callers that do not care about order.
func (r *Request) HeaderMap() map[string]string {
	m := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		m[h.Name] = h.Value
	}
	return m
}

// ContentLength returns the body length in bytes.
func (r *Request) ContentLength() int64 {
	return int64(len(r.Body))
}
