package auth

import "errors"

// Sentinel errors returned by Manager operations. Callers are expected to
// branch with errors.Is; wrapped detail is for logs, not for matching.
var (
	// ErrDuplicateUsername is returned by Register when the username is
	// already taken.
	ErrDuplicateUsername = errors.New("auth: username already registered")

	// ErrInvalidCredentials is returned by Login for an unknown username or
	// a wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrAccountNotFound is returned by ban operations when the account id
	// does not exist.
	ErrAccountNotFound = errors.New("auth: account not found")

	// ErrInvalidToken is returned by RefreshSession when the access token,
	// the refresh token, or the stored session state rejects the request.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrValidationFailed wraps field-level failures from request validation.
	ErrValidationFailed = errors.New("auth: request validation failed")

	// ErrStoreUnavailable wraps unexpected account store failures so callers
	// can distinguish infrastructure trouble from domain rejections.
	ErrStoreUnavailable = errors.New("auth: account store unavailable")
)
