package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	NoRefreshTokenErr   = errors.New("no refresh token available")
	SessionExpiredErr   = errors.New("session expired, please log in again")
	UnexpectedStatusErr = errors.New("unexpected response status")
)

// StatusError is a non-2xx response from the marketplace API, carrying the
// envelope message when the body had one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api responded %d", e.Code)
	}
	return fmt.Sprintf("api responded %d: %s", e.Code, e.Message)
}

// IsUnauthorized reports whether err represents an authorization failure that
// survived the refresh protocol.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusUnauthorized
	}
	return errors.Is(err, SessionExpiredErr) || errors.Is(err, NoRefreshTokenErr)
}
