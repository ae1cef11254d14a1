package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/docker/docker/client"
)

// The adapter collapses every Docker SDK failure into a closed taxonomy.
// Nothing above this package ever sees a raw SDK error.
var (
	// ErrNotFound: the daemon answered, but no such container.
	ErrNotFound = errors.New("container not found")

	// ErrUnreachable: the daemon was not contactable at all.
	ErrUnreachable = errors.New("docker daemon unreachable")
)

// maxAPIErrorLen bounds the daemon message carried upward.
const maxAPIErrorLen = 500

// APIError is a daemon-side failure: the daemon responded with an error.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docker %s failed: %s", e.Op, e.Message)
}

// classify maps an SDK error into the taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%s %q: %w", op, "container", ErrNotFound)
	}
	if client.IsErrConnectionFailed(err) {
		return fmt.Errorf("%s: %w", op, ErrUnreachable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrUnreachable)
	}
	msg := err.Error()
	if len(msg) > maxAPIErrorLen {
		msg = msg[:maxAPIErrorLen]
	}
	return &APIError{Op: op, Message: msg}
}
