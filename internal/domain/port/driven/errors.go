package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across ports. All failures here are terminal for
// the current request; nothing retries in the background.
var (
	// ErrNoCredential means no credential is stored for the requested
	// identity. The caller must complete a login first.
	ErrNoCredential = errors.New("no stored credential: login required")

	// ErrNoRefreshToken means the stored credential carries no refresh
	// token and cannot be refreshed.
	ErrNoRefreshToken = errors.New("credential has no refresh token: login required")

	// ErrConsentRequired means the provider rejected a refresh because
	// admin consent was revoked or never granted. Refreshing again cannot
	// succeed; an administrator must act out of band.
	ErrConsentRequired = errors.New("provider consent required: administrator approval needed")
)

// TokenExchangeError reports a failed authorization-code exchange, carrying
// the provider's error payload.
type TokenExchangeError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token exchange rejected (%s): %s", e.Code, e.Description)
	}
	return fmt.Sprintf("token exchange failed: %s", e.Description)
}

// IdentityResolutionError reports a failure to resolve the authenticated
// principal from the provider's identity endpoint.
type IdentityResolutionError struct {
	Status  int
	Message string
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("identity resolution failed (status %d): %s", e.Status, e.Message)
}

// RefreshError reports a provider rejection of a refresh-token exchange
// other than a consent failure.
type RefreshError struct {
	Status      int
	Code        string
	Description string
}

func (e *RefreshError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token refresh rejected (%s): %s", e.Code, e.Description)
	}
	return fmt.Sprintf("token refresh failed: %s", e.Description)
}

// DownstreamError reports a non-success response from the downstream
// resource API. Message carries the provider-reported message when it was
// parseable, else a status-derived fallback.
type DownstreamError struct {
	Status  int
	Message string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream request failed (status %d): %s", e.Status, e.Message)
}

// Unauthorized reports whether the downstream rejected the bearer token,
// the signal that triggers the single refresh-and-retry cycle.
func (e *DownstreamError) Unauthorized() bool {
	return e.Status == 401
}
