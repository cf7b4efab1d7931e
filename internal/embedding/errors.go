package embedding

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrAuthentication matches failures where the endpoint rejected the credential.
	ErrAuthentication = errors.New("authentication failed")
	// ErrRemoteCall matches every other transport or protocol failure.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrDimensionDetection matches failures raised while probing a custom
	// model's dimension. Such errors also match ErrRemoteCall or ErrAuthentication.
	ErrDimensionDetection = errors.New("dimension detection failed")
)

// Op names the operation that failed.
type Op string

const (
	OpEmbed  Op = "embed"
	OpBatch  Op = "embed batch"
	OpDetect Op = "detect dimension"
)

// Error is returned for every failed remote call. It names the model and
// wraps the underlying cause.
type Error struct {
	Op    Op
	Model string
	Auth  bool
	Err   error
}

func (e *Error) Error() string {
	if e.Op == OpDetect {
		return fmt.Sprintf("failed to detect dimension for model %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("%s with model %s: %v", e.Op, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Auth
	case ErrRemoteCall:
		return !e.Auth
	case ErrDimensionDetection:
		return e.Op == OpDetect
	}
	return false
}

// Kind is a short label for the failure class, used in metrics and HTTP bodies.
func (e *Error) Kind() string {
	switch {
	case e.Auth:
		return "authentication"
	case e.Op == OpDetect:
		return "dimension_detection"
	default:
		return "remote_call"
	}
}

var authPatterns = []string{"api key", "unauthorized", "authentication"}

func newError(op Op, model string, err error) *Error {
	return &Error{Op: op, Model: model, Auth: isAuthError(err), Err: err}
}

func isAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
