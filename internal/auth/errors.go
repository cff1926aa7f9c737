package auth

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is against a *LoginError.
var (
	ErrPopupBlocked     = errors.New("popup blocked")
	ErrStateMismatch    = errors.New("state mismatch")
	ErrProviderError    = errors.New("provider returned an error")
	ErrGrantRevoked     = errors.New("grant revoked")
	ErrLoginFailed      = errors.New("login failed")
	ErrSessionInvalid   = errors.New("session invalid")
	ErrAttemptAbandoned = errors.New("login attempt abandoned")
)

// Reason tokens delivered to the host with Notifier.LoginError. Provider
// errors are passed through verbatim (e.g. "user_cancelled_login").
const (
	ReasonPopupBlocked   = "popup_blocked"
	ReasonStateMismatch  = "state_mismatch"
	ReasonLoginFailed    = "login_failed"
	ReasonGrantRevoked   = "grant_revoked"
	ReasonLoginAbandoned = "login_abandoned"
	ReasonSessionInvalid = "session_invalid"
)

// LoginError is a login failure of a given kind.
type LoginError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (%s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v (%s)", e.Kind, e.Reason)
}

func (e *LoginError) Is(target error) bool {
	return target == e.Kind
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
