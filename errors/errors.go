package errors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Metadata keys set by the With* helpers.
const (
	MetaTransport = "transport"
	MetaStatus    = "status"
	MetaBody      = "body"
)

// Error is a classified error carrying optional key/value metadata.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	timestamp time.Time
}

var (
	_ error            = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable reports whether a later attempt may succeed.
func (e *Error) Retryable() bool {
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Status returns the HTTP status recorded with WithStatus, or 0.
func (e *Error) Status() int {
	n, _ := strconv.Atoi(e.metadata[MetaStatus])
	return n
}

// Body returns the response body recorded by Rejected, or "".
func (e *Error) Body() string {
	return e.metadata[MetaBody]
}

// Transport returns the transport recorded with WithTransport, or "".
func (e *Error) Transport() string {
	return e.metadata[MetaTransport]
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:     e.code,
		Category: e.category,
		Message:  e.message,
		Metadata: e.metadata,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option configures an Error.
type Option func(*Error)

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithTransport records which transport produced the error.
func WithTransport(name string) Option {
	return WithMetadata(MetaTransport, name)
}

// WithStatus records an HTTP status code.
func WithStatus(status int) Option {
	return WithMetadata(MetaStatus, strconv.Itoa(status))
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NotConfigured creates a configuration error.
func NotConfigured(message string, opts ...Option) *Error {
	return New(ErrCodeNotConfigured, message, opts...)
}

// Transport creates a transport error wrapping cause.
func Transport(transport string, cause error, opts ...Option) *Error {
	opts = append([]Option{WithTransport(transport), WithCause(cause)}, opts...)
	return New(ErrCodeTransport, transport+" request failed", opts...)
}

// Rejected creates a rejection error for a non-2xx response. The status and
// body are readable back through Status and Body.
func Rejected(transport string, status int, body string) *Error {
	return New(ErrCodeRejected,
		fmt.Sprintf("%s returned status %d", transport, status),
		WithTransport(transport),
		WithStatus(status),
		WithMetadata(MetaBody, body))
}

// Relay creates a relay error.
func Relay(message string, opts ...Option) *Error {
	return New(ErrCodeRelay, message, opts...)
}
