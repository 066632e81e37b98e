// Package errors provides the error taxonomy shared by the site and page resolvers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoTitleOrID is returned when a page query names neither a title nor a page ID.
var ErrNoTitleOrID = stderrors.New("page query needs a title or a page id")

// DiscoveryError indicates the API endpoint of a wiki could not be found,
// or the base URL given for it is malformed.
type DiscoveryError struct {
	URL    string
	Reason string // human-readable, already localized
	Hint   string // optional site-specific advice
	Err    error
}

func (e *DiscoveryError) Error() string {
	return withHint(e.Reason, e.Hint)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// TransportError indicates a network-level failure while talking to a wiki:
// a timeout, a refused connection, an unexpected status or a Cloudflare challenge.
type TransportError struct {
	URL     string
	Op      string // "discovery", "siteinfo", ...
	Message string // human-readable, already localized; Err's text is used when empty
	Hint    string
	Err     error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return withHint(msg, e.Hint)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned by the fetcher when a request exceeds its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
	}
	return fmt.Sprintf("request to %s timed out", e.URL)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// StatusError is returned by the fetcher when the response status differs from the expected one.
type StatusError struct {
	URL      string
	Code     int
	Expected int
	Body     string // truncated response body, for diagnostics
}

func (e *StatusError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("unexpected status %d from %s (want %d)", e.Code, e.URL, e.Expected)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// FetchError wraps any other fetch failure (DNS, connection reset, body read).
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CloudflareError indicates the site answered with a Cloudflare bot challenge instead of content.
type CloudflareError struct {
	URL string
}

func (e *CloudflareError) Error() string {
	return fmt.Sprintf("cloudflare challenge served by %s", e.URL)
}

// MetadataParseError indicates a siteinfo response could not be decoded.
type MetadataParseError struct {
	API    string
	Reason string
	Err    error
}

func (e *MetadataParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed siteinfo from ")
	sb.WriteString(e.API)
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *MetadataParseError) Unwrap() error {
	return e.Err
}

// InvalidPageTitleError carries the wiki's reason for rejecting a title.
// It is terminal: retrying the same title cannot succeed.
type InvalidPageTitleError struct {
	Title  string
	Reason string
}

func (e *InvalidPageTitleError) Error() string {
	return fmt.Sprintf("invalid page title %q: %s", e.Title, e.Reason)
}

// RunawayRecursionError is returned when interwiki chaining exceeds the depth limit.
// It signals a malformed interwiki map (usually a cycle) and must not be retried.
type RunawayRecursionError struct {
	Title string
	Depth int
	Limit int
}

func (e *RunawayRecursionError) Error() string {
	return fmt.Sprintf("interwiki chain for %q reached depth %d (limit %d); the interwiki map is probably cyclic",
		e.Title, e.Depth, e.Limit)
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value (may be empty for sensitive data)
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsTimeout returns true if err is, or wraps, a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return stderrors.As(err, &target)
}

// StatusCode returns the HTTP status carried by a wrapped StatusError, or 0.
func StatusCode(err error) int {
	var target *StatusError
	if stderrors.As(err, &target) {
		return target.Code
	}
	return 0
}

// IsCloudflare returns true if err is, or wraps, a CloudflareError.
func IsCloudflare(err error) bool {
	var target *CloudflareError
	return stderrors.As(err, &target)
}

// IsDiscovery returns true if err is, or wraps, a DiscoveryError.
func IsDiscovery(err error) bool {
	var target *DiscoveryError
	return stderrors.As(err, &target)
}

// IsTransport returns true if err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return stderrors.As(err, &target)
}

// IsMetadataParse returns true if err is, or wraps, a MetadataParseError.
func IsMetadataParse(err error) bool {
	var target *MetadataParseError
	return stderrors.As(err, &target)
}

// IsInvalidPageTitle returns true if err is, or wraps, an InvalidPageTitleError.
func IsInvalidPageTitle(err error) bool {
	var target *InvalidPageTitleError
	return stderrors.As(err, &target)
}

// IsRunawayRecursion returns true if err is, or wraps, a RunawayRecursionError.
func IsRunawayRecursion(err error) bool {
	var target *RunawayRecursionError
	return stderrors.As(err, &target)
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

func withHint(msg, hint string) string {
	if hint == "" {
		return msg
	}
	return msg + "\n" + hint
}
