package extract

import "fmt"

// Kind classifies extraction failures
type Kind int

const (
	// KindServiceUnreachable covers transport failures, API errors and timeouts
	KindServiceUnreachable Kind = iota
	// KindMalformedResponse covers replies that do not yield 1 to 10 facts
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindServiceUnreachable:
		return "service unreachable"
	case KindMalformedResponse:
		return "malformed response"
	default:
		return "unknown"
	}
}

// ExtractionError reports a failed completion round
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extract facts: " + e.Kind.String()
	}
	return fmt.Sprintf("extract facts: %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: KindMalformedResponse, Err: fmt.Errorf(format, args...)}
}
