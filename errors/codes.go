package errors

// ErrorCategory classifies errors by their nature.
type ErrorCategory string

const (
	CategoryTransient ErrorCategory = "transient"
	CategoryPermanent ErrorCategory = "permanent"
	CategoryResource  ErrorCategory = "resource"
	CategoryInternal  ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on a later attempt.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED" // API key missing, placeholder or malformed
	ErrCodeTransport     ErrorCode = "TRANSPORT"      // network call failed
	ErrCodeRejected      ErrorCode = "REJECTED"       // non-2xx response
	ErrCodeRelay         ErrorCode = "RELAY"          // local relay start or forward failure
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
	ErrCodeCanceled      ErrorCode = "CANCELED"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeUnsupported   ErrorCode = "UNSUPPORTED" // transport not available in this environment
	ErrCodeInternal      ErrorCode = "INTERNAL"
	ErrCodePanic         ErrorCode = "PANIC"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTransport, ErrCodeTimeout:
		return CategoryTransient
	case ErrCodeNotConfigured, ErrCodeRejected, ErrCodeInvalidInput,
		ErrCodeUnsupported, ErrCodeCanceled:
		return CategoryPermanent
	case ErrCodeRelay:
		return CategoryResource
	default:
		return CategoryInternal
	}
}
