package grobid

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable indicates the reference-parsing service could not be
// reached at all. This is a user-actionable condition; the CLI renders
// RemediationMessage alongside it.
var ErrServiceUnavailable = errors.New("reference-parsing service unreachable")

// RemediationMessage explains how to get a local service running.
const RemediationMessage = `The GROBID service did not respond. Check that it is running and that
--grobid-url points at it. A local instance can be started with:

  docker run --rm -p 8070:8070 lfoppiano/grobid:0.8.0`

// ServiceError reports a non-success response from the service. Body is
// truncated; it exists for diagnostics, not for parsing.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("reference-parsing service returned status %d: %s", e.StatusCode, e.Body)
}

// IsServiceUnavailable reports whether err indicates an unreachable service.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
