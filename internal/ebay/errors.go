package ebay

import (
	"errors"
	"fmt"
)

// ErrorKind tags an Error with the stage of the eBay integration that
// produced it, so callers can branch without parsing message text.
type ErrorKind string

const (
	// KindAuthentication means the identity provider rejected the
	// client-credentials exchange, or credentials were missing.
	KindAuthentication ErrorKind = "authentication"
	// KindAPIAccess means a token was obtained but an API call failed.
	KindAPIAccess ErrorKind = "api_access"
)

// Error is a tagged eBay integration error. StatusCode and Body carry
// the upstream HTTP status and raw response text when available.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Body)
	}
	return e.Message
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
