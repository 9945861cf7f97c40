// Package application wires the driven ports into the relay's use cases.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
)

// guestMarker appears in the principal name of external (guest) accounts.
const guestMarker = "#EXT#"

// AuthService owns token acquisition: it turns an authorization code into a
// stored credential and handles logout.
type AuthService struct {
	provider     driven.OAuthProvider
	creds        driven.CredentialStore
	rejectGuests bool
	logger       *slog.Logger
}

// NewAuthService creates an AuthService. When rejectGuests is true, logins
// from guest accounts (principal containing "#EXT#") are refused.
func NewAuthService(provider driven.OAuthProvider, creds driven.CredentialStore, rejectGuests bool, logger *slog.Logger) *AuthService {
	return &AuthService{
		provider:     provider,
		creds:        creds,
		rejectGuests: rejectGuests,
		logger:       logger,
	}
}

// StartLogin returns the provider authorization URL to redirect the user to,
// plus the state value the callback must echo.
func (s *AuthService) StartLogin() (authURL, state string) {
	state = uuid.NewString()
	return s.provider.AuthCodeURL(state), state
}

// CompleteLogin exchanges the authorization code for a token pair, resolves
// the principal, and upserts the credential record keyed by it. Returns the
// resolved user id as confirmation. Acquisition is an upsert: a second login
// for the same principal overwrites the stored tokens.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (string, error) {
	tokens, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	profile, err := s.provider.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return "", err
	}

	userID := profile.PrincipalName
	if s.rejectGuests && strings.Contains(userID, guestMarker) {
		return "", &driven.IdentityResolutionError{
			Status:  403,
			Message: fmt.Sprintf("guest account %q is not permitted", userID),
		}
	}

	cred := model.Credential{
		UserID:       userID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return "", fmt.Errorf("store credential for %q: %w", userID, err)
	}

	s.logger.Info("login complete", "user_id", userID, "expires_in", tokens.ExpiresIn, "has_refresh_token", tokens.RefreshToken != "")
	return userID, nil
}

// Logout deletes the stored credential. Logging out with nothing stored is
// a no-op.
func (s *AuthService) Logout(ctx context.Context) error {
	cred, err := s.creds.GetFirst(ctx)
	if err != nil {
		return err
	}
	if cred == nil {
		return nil
	}

	if err := s.creds.Delete(ctx, cred.UserID); err != nil {
		return err
	}

	s.logger.Info("logout complete", "user_id", cred.UserID)
	return nil
}
