package homework

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// Transport errors
	ErrConnectivity      = errors.New("connectivity error")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrMalformedResponse = errors.New("malformed response")
	ErrRemote            = errors.New("remote api error")

	// Payload errors
	ErrSchema        = errors.New("schema error")
	ErrUnknownStatus = errors.New("unknown homework status")
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNATURES
// ══════════════════════════════════════════════════════════════════════════════

// Signature is a structured identity of a failure. Two failures with equal
// signatures are considered the same condition for notification purposes.
type Signature struct {
	Kind   string
	Detail string
}

// String returns the signature in "kind: detail" form.
func (s Signature) String() string {
	if s.Detail == "" {
		return s.Kind
	}
	return s.Kind + ": " + s.Detail
}

// signer is implemented by every typed error in this package.
type signer interface {
	Signature() Signature
}

// SignatureOf returns the signature of err. Errors that do not come from this
// package are identified by their message.
func SignatureOf(err error) Signature {
	if err == nil {
		return Signature{}
	}
	var s signer
	if errors.As(err, &s) {
		return s.Signature()
	}
	return Signature{Kind: "unclassified", Detail: err.Error()}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ConnectivityError is returned when the request never produced a response.
type ConnectivityError struct {
	Target string
	Err    error
}

// Error implements the error interface.
func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Target, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectivityError) Unwrap() error { return e.Err }

// Is implements errors.Is() matching.
func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// Signature identifies the failure by target and cause class, so that
// ephemeral details such as local ports do not defeat duplicate suppression.
func (e *ConnectivityError) Signature() Signature {
	return Signature{Kind: "connectivity", Detail: e.Target + " " + causeClass(e.Err)}
}

// causeClass buckets a transport error into a stable class name.
func causeClass(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "reset"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "other"
	}
}

// UnexpectedStatusError is returned for any non-200 HTTP status.
type UnexpectedStatusError struct {
	Code int
}

// Error implements the error interface.
func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// Is implements errors.Is() matching.
func (e *UnexpectedStatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Signature identifies the failure by status code.
func (e *UnexpectedStatusError) Signature() Signature {
	return Signature{Kind: "unexpected_status", Detail: strconv.Itoa(e.Code)}
}

// MalformedResponseError is returned when the body is not valid JSON.
type MalformedResponseError struct {
	Err error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("response is not valid json: %v", e.Err)
}

// Unwrap returns the decoder error.
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Is implements errors.Is() matching.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// Signature ignores decoder offsets; any undecodable body is the same condition.
func (e *MalformedResponseError) Signature() Signature {
	return Signature{Kind: "malformed_response"}
}

// RemoteError is returned when the API answers with an error envelope.
type RemoteError struct {
	Key   string
	Value any
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("api returned error envelope: %s=%v", e.Key, e.Value)
}

// Is implements errors.Is() matching.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// Signature identifies the failure by envelope key and value.
func (e *RemoteError) Signature() Signature {
	return Signature{Kind: "remote", Detail: fmt.Sprintf("%s=%v", e.Key, e.Value)}
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYLOAD ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// SchemaError is returned when a decoded payload does not have the expected shape.
type SchemaError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "invalid response schema: " + e.Reason
	}
	return fmt.Sprintf("invalid response schema: %s: %s", e.Field, e.Reason)
}

// Is implements errors.Is() matching.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Signature identifies the failure by field and reason.
func (e *SchemaError) Signature() Signature {
	return Signature{Kind: "schema", Detail: e.Field + " " + e.Reason}
}

// UnknownStatusError is returned for a status outside the verdict table.
type UnknownStatusError struct {
	Status string
}

// Error implements the error interface.
func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown homework status %q", e.Status)
}

// Is implements errors.Is() matching.
func (e *UnknownStatusError) Is(target error) bool { return target == ErrUnknownStatus }

// Signature identifies the failure by the offending status value.
func (e *UnknownStatusError) Signature() Signature {
	return Signature{Kind: "unknown_status", Detail: e.Status}
}

// IsTransport checks if the error happened before a payload was available.
func IsTransport(err error) bool {
	return errors.Is(err, ErrConnectivity) ||
		errors.Is(err, ErrUnexpectedStatus) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrRemote)
}
