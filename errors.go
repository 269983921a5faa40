package authclient

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	TextCodeNetworkFailure         = "NETWORK_FAILURE"
	TextCodeProfileFetchFailure    = "PROFILE_FETCH_FAILURE"
	TextCodeUnauthorizedMidSession = "UNAUTHORIZED_MID_SESSION"
	TextCodeSuperseded             = "SESSION_SUPERSEDED"
)

// ErrInvalidCredentials is returned when the backend rejects a login attempt
// or the login payload fails local validation.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNetworkFailure is returned when a request never produced an HTTP response.
var ErrNetworkFailure = goerrors.New("network failure", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetworkFailure).
	WithCode(goerrors.CodeInternal)

// ErrProfileFetchFailure is returned when the profile endpoint fails.
var ErrProfileFetchFailure = goerrors.New("unable to fetch profile", goerrors.CategoryOperation).
	WithTextCode(TextCodeProfileFetchFailure).
	WithCode(goerrors.CodeInternal)

// ErrUnauthorizedMidSession describes a 401 observed outside the login flow.
var ErrUnauthorizedMidSession = goerrors.New("session is no longer authorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorizedMidSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrSuperseded is returned when a newer login, logout or expiry changed the
// session while an operation was waiting on the network.
var ErrSuperseded = goerrors.New("session changed while request was in flight", goerrors.CategoryConflict).
	WithTextCode(TextCodeSuperseded).
	WithCode(goerrors.CodeConflict)

// IsInvalidCredentials reports whether err is a rejected login.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsNetworkFailure reports whether err is a transport level failure.
func IsNetworkFailure(err error) bool {
	return hasTextCode(err, TextCodeNetworkFailure)
}

// IsProfileFetchFailure reports whether err is a failed profile fetch.
func IsProfileFetchFailure(err error) bool {
	return hasTextCode(err, TextCodeProfileFetchFailure)
}

// IsUnauthorized reports whether err is a mid-session authorization failure.
func IsUnauthorized(err error) bool {
	return hasTextCode(err, TextCodeUnauthorizedMidSession)
}

// IsSuperseded reports whether err was discarded because of a newer operation.
func IsSuperseded(err error) bool {
	return hasTextCode(err, TextCodeSuperseded)
}

// DetailMessage returns the server provided detail attached to err, or an
// empty string when the backend did not send one.
func DetailMessage(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return ""
	}
	if detail, ok := richErr.Metadata["detail"].(string); ok {
		return strings.TrimSpace(detail)
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == code
}

// newError clones a sentinel so call sites can attach a source error and
// metadata without mutating the package level value.
func newError(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = goerrors.New(base.Message, base.Category).
			WithTextCode(base.TextCode).
			WithCode(base.Code)
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
