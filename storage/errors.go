package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAuthFailure        = errors.New("credentials rejected")
	ErrNetwork            = errors.New("network error")
	ErrUnsupportedVariant = errors.New("unsupported storage variant")
	ErrInvalidConfig      = errors.New("invalid provider configuration")
)

// Error is a classified backend failure.
type Error struct {
	Kind    error
	Variant Variant
	Op      string
	Path    string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Variant, e.Op)
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Hint != "" {
		fmt.Fprintf(&b, ", %s", e.Hint)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var authErrorCodes = map[string]bool{
	"AccessDenied":                 true,
	"AuthorizationHeaderMalformed": true,
	"ExpiredToken":                 true,
	"InvalidAccessKeyId":           true,
	"InvalidToken":                 true,
	"SignatureDoesNotMatch":        true,
	"Unauthorized":                 true,
	"unauthorized":                 true,
}

var notFoundErrorCodes = map[string]bool{
	"NoSuchBucket": true,
	"NoSuchKey":    true,
	"NotFound":     true,
}

func classify(variant Variant, op string, path string, err error) error {
	if err == nil {
		return nil
	}

	e := &Error{Variant: variant, Op: op, Path: path, Err: err}

	var apiErr smithy.APIError
	var respErr *awshttp.ResponseError
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		e.Kind, e.Hint = ErrNetwork, "host name could not be resolved, check the endpoint"
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind, e.Hint = ErrNetwork, "request timed out, check that the endpoint is reachable"
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Kind, e.Hint = ErrNetwork, "connection refused, check the endpoint host and port"
	case errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()]:
		e.Kind, e.Hint = ErrAuthFailure, "verify the access key and secret"
	case errors.As(err, &apiErr) && notFoundErrorCodes[apiErr.ErrorCode()]:
		e.Kind = ErrNotFound
	case errors.As(err, &respErr) && isAuthStatus(respErr.HTTPStatusCode()):
		e.Kind, e.Hint = ErrAuthFailure, "verify the access key and secret"
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound:
		e.Kind = ErrNotFound
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() >= http.StatusInternalServerError:
		e.Kind, e.Hint = ErrNetwork, "storage service is unavailable"
	case errors.As(err, &netErr):
		e.Kind, e.Hint = ErrNetwork, "host is unreachable"
	default:
		return fmt.Errorf("%s %s %s: %w", variant, op, path, err)
	}

	return e
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Authentication and validation failures never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthFailure) || errors.Is(err, ErrInvalidConfig) {
		return false
	}
	return errors.Is(err, ErrNetwork)
}

// HTTPStatus maps a check outcome to the status code a thin HTTP layer returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
