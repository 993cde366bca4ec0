package external

import (
	"context"
	"errors"
	"fmt"
)

// Record is one raw record fetched from an external system. The payload stays
// opaque until mapping; it is retained verbatim on rejected and conflicted
// sync records.
type Record struct {
	Payload string
}

// ProbeResult is what an authenticated probe call reports back.
type ProbeResult struct {
	StatusCode   int
	Capabilities []string
}

// Credential is a resolved authentication credential. It is never logged and
// never returned to API callers.
type Credential struct {
	Token    string
	Username string
	Password string
	APIKey   string
}

// CredentialResolver resolves an opaque secret reference into a live
// credential.
type CredentialResolver interface {
	Resolve(ctx context.Context, secretRef string) (*Credential, error)
}

// ErrorKind classifies an outbound-call failure so the retry decision is a
// pure function of the tag rather than of error type hierarchies.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
	KindTimeout   ErrorKind = "timeout"
)

// CallError is a classified outbound-call failure.
type CallError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (http %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Retryable reports whether an error may be retried under a retry policy.
// Permanent failures (4xx authorization/validation) fail immediately.
func Retryable(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind == KindTransient || callErr.Kind == KindTimeout
	}
	return false
}

// StatusCodeOf extracts the HTTP status from a classified error, 0 when absent.
func StatusCodeOf(err error) int {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.StatusCode
	}
	return 0
}
