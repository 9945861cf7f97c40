package driven

import (
	"context"

	"mailrelay/internal/domain/model"
)

// OAuthProvider defines the driven port for the identity provider's token
// and identity endpoints. Adapters normalize provider rejections into the
// error taxonomy in errors.go; raw transport failures never cross this
// boundary.
type OAuthProvider interface {
	// AuthCodeURL builds the provider authorization URL that starts the
	// authorization-code flow for the registered client.
	AuthCodeURL(state string) string

	// Exchange redeems an authorization code for an initial token pair
	// (grant_type=authorization_code). Failures are *TokenExchangeError.
	Exchange(ctx context.Context, code string) (*model.TokenSet, error)

	// Refresh redeems a refresh token for a new token pair
	// (grant_type=refresh_token). A consent/admin-approval rejection is
	// ErrConsentRequired; any other rejection is *RefreshError. The
	// returned TokenSet carries the previous refresh token when the
	// provider did not rotate it.
	Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error)

	// FetchProfile resolves the authenticated principal using the access
	// token as a bearer credential. Failures are *IdentityResolutionError.
	FetchProfile(ctx context.Context, accessToken string) (*model.Profile, error)
}

// MailClient defines the driven port for the downstream resource API.
type MailClient interface {
	// ListInbox fetches the caller's most recent messages using the access
	// token as a bearer credential. Any non-success response, including a
	// 401 token rejection, is returned as *DownstreamError.
	ListInbox(ctx context.Context, accessToken string) ([]model.Message, error)
}
