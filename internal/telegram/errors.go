package telegram

import (
	"errors"
	"fmt"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

var (
	// ErrNotReady is returned by Conn operations when the connection is not
	// established or has been lost.
	ErrNotReady = errors.New("telegram client not ready")

	// ErrPeerNotFound is returned when a numeric chat identifier has not been
	// seen in any update and cannot be resolved.
	ErrPeerNotFound = errors.New("chat not found: numeric ids must belong to a chat seen since startup")

	// ErrSessionRequired is returned when the server starts without a session
	// credential.
	ErrSessionRequired = errors.New("no session credential: run the login command first")
)

// AuthenticationError reports invalid credentials or an aborted login.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("telegram authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectivityError reports that the Telegram backend could not be reached.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("telegram unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsAuthenticationError reports whether err is an *AuthenticationError.
func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsConnectivityError reports whether err is a *ConnectivityError.
func IsConnectivityError(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

// classify wraps a startup failure in the matching error type. Errors that
// are already classified are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsAuthenticationError(err) || IsConnectivityError(err) {
		return err
	}
	if errors.Is(err, ErrSessionRequired) || auth.IsUnauthorized(err) ||
		tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED", "AUTH_KEY_DUPLICATED") {
		return &AuthenticationError{Err: err}
	}
	return &ConnectivityError{Err: err}
}
