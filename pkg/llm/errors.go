package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResult is returned when an operation completed without producing a
// usable value and no more specific error applies.
var ErrNoResult = errors.New("llm: no result")

// TransportError reports a failure to reach the upstream or to read its
// response: DNS, connection, TLS, or a broken body.
type TransportError struct {
	// Op names the operation that failed ("complete", "stream", "embed").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError reports a non-success HTTP status from the upstream. Body is
// the raw response body, kept for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "…"
	}
	return fmt.Sprintf("llm: upstream returned status %d: %s", e.Status, body)
}

// ProtocolError reports a success response whose body could not be decoded.
type ProtocolError struct {
	Reason string
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm: protocol: %s: %v", e.Reason, e.Err)
	}
	return "llm: protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RequestError reports a request rejected locally before anything was sent.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("llm: invalid request: %s: %s", e.Field, e.Reason)
}

// Violation is a single schema violation found in a model response.
type Violation struct {
	// Path is the JSON path of the offending value, e.g. "$.tags[2]".
	Path string

	// Message says what is wrong.
	Message string
}

func (v Violation) String() string { return v.Path + ": " + v.Message }

// ValidationError reports that structured output could not be obtained after
// every attempt was used.
type ValidationError struct {
	// Attempts is how many completions were requested.
	Attempts int

	// Violations are the schema violations of the last attempt. Empty when
	// the last attempt failed for another reason (no JSON found, gateway
	// error).
	Violations []Violation

	// Raw is the last response text received, if any.
	Raw string

	// Err is the cause of the last failed attempt.
	Err error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llm: structured output invalid after %d attempt(s)", e.Attempts)
	if len(e.Violations) > 0 {
		b.WriteString(": ")
		for i, v := range e.Violations {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(v.String())
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }
