package llm

import "fmt"

// RemoteCallError reports a failed call to the language-model backend:
// transport errors, non-2xx responses and unusable payloads.
type RemoteCallError struct {
	Op  string // completion, embedding, list_models
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote %s call failed: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a structured response that is missing a
// field or carries a field of the wrong type
type MalformedResponseError struct {
	Field  string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed response: %s", e.Reason)
	}
	return fmt.Sprintf("malformed response: field %q %s", e.Field, e.Reason)
}

// StatusError is returned by HTTP providers for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
