package backend

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// revokedMarkers identify a failed login caused by the provider having
// revoked the user's grant. Matched against the upper-cased body.
var revokedMarkers = []string{
	"REVOKED_ACCESS_TOKEN",
	"65601",
}

// IsGrantRevoked reports whether err is a backend rejection caused by a
// revoked provider grant. Only a fresh, forced authorization recovers.
func IsGrantRevoked(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	body := strings.ToUpper(apiErr.Body)
	for _, marker := range revokedMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// IsRejected reports whether err is an answer from the backend, as opposed
// to a transport failure or a cancelled request.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
