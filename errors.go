package swissknife

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoToken is returned by TokenStore.Load when no credential is stored.
var ErrNoToken = errors.New("swissknife: no stored credential")

// DecodeError indicates a malformed or undecodable credential. It is
// always recovered locally: callers treat it as "no session", never as a
// fatal failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("swissknife: decode credential: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// APIError is the structured error body the SwissKnife backend returns
// on non-2xx responses: {"reason": ..., "status": ...}.
type APIError struct {
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("swissknife: api error (%d %s): %s", e.HTTPStatus, e.Status, e.Reason)
}

// Unauthorized reports whether the error carries HTTP 401.
func (e *APIError) Unauthorized() bool { return e.HTTPStatus == http.StatusUnauthorized }

// IsUnauthorized reports whether err is (or wraps) a 401 APIError.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Unauthorized()
}

// RefreshFailure classifies why a silent token refresh failed.
type RefreshFailure string

const (
	// RefreshMissingToken: the provider session has no refresh
	// capability (e.g. no refresh token was ever issued).
	RefreshMissingToken RefreshFailure = "missing_refresh_token"

	// RefreshLoginRequired: the provider demands an interactive login.
	RefreshLoginRequired RefreshFailure = "login_required"

	// RefreshInvalidGrant: the refresh token was rejected.
	RefreshInvalidGrant RefreshFailure = "invalid_grant"

	// RefreshOther covers every unclassified cause. It forces a full
	// sign-out (fail safe).
	RefreshOther RefreshFailure = "other"
)

// RefreshError is a classified silent-refresh failure.
type RefreshError struct {
	Failure RefreshFailure
	Err     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("swissknife: token refresh failed (%s): %v", e.Failure, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// RequiresLogin reports whether the failure should force a redirect to
// the provider's interactive login rather than a plain sign-out.
func (e *RefreshError) RequiresLogin() bool {
	switch e.Failure {
	case RefreshMissingToken, RefreshLoginRequired, RefreshInvalidGrant:
		return true
	}
	return false
}

// ClassifyRefresh wraps err as a RefreshError, mapping known OAuth2
// error codes onto the taxonomy. Unknown causes classify as
// RefreshOther.
func ClassifyRefresh(code string, err error) *RefreshError {
	switch code {
	case "login_required", "consent_required", "interaction_required":
		return &RefreshError{Failure: RefreshLoginRequired, Err: err}
	case "invalid_grant":
		return &RefreshError{Failure: RefreshInvalidGrant, Err: err}
	case "missing_refresh_token":
		return &RefreshError{Failure: RefreshMissingToken, Err: err}
	}
	return &RefreshError{Failure: RefreshOther, Err: err}
}
