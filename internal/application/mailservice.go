package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
)

// MailService is the resource access orchestrator: it uses the stored
// credential to call the downstream mail API, refreshing the access token
// once when the downstream rejects it.
type MailService struct {
	provider driven.OAuthProvider
	mail     driven.MailClient
	creds    driven.CredentialStore
	logger   *slog.Logger
}

// NewMailService creates a MailService.
func NewMailService(provider driven.OAuthProvider, mail driven.MailClient, creds driven.CredentialStore, logger *slog.Logger) *MailService {
	return &MailService{
		provider: provider,
		mail:     mail,
		creds:    creds,
		logger:   logger,
	}
}

// FetchInbox lists the stored identity's inbox. On a 401 from the
// downstream it refreshes the access token and retries exactly once; a
// rejection of the retried call is terminal. Refresh failures propagate
// with their kind intact so a consent failure is never reported as a
// generic one.
func (s *MailService) FetchInbox(ctx context.Context) (*model.Inbox, error) {
	cred, err := s.creds.GetFirst(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, driven.ErrNoCredential
	}

	messages, err := s.mail.ListInbox(ctx, cred.AccessToken)
	if err == nil {
		return inboxOf(messages), nil
	}

	var dsErr *driven.DownstreamError
	if !errors.As(err, &dsErr) || !dsErr.Unauthorized() {
		return nil, err
	}

	s.logger.Info("access token rejected, refreshing", "user_id", cred.UserID)

	accessToken, err := s.refresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	messages, err = s.mail.ListInbox(ctx, accessToken)
	if err != nil {
		// A second 401 is a hard authentication failure, not another cycle.
		return nil, err
	}
	return inboxOf(messages), nil
}

// refresh redeems the credential's refresh token and persists the new pair.
// The access token is always overwritten; the refresh token only when the
// provider rotated it (the provider port carries the old one forward
// otherwise). Returns the new plaintext access token.
func (s *MailService) refresh(ctx context.Context, cred *model.Credential) (string, error) {
	if cred.RefreshToken == "" {
		return "", driven.ErrNoRefreshToken
	}

	tokens, err := s.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	cred.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		cred.RefreshToken = tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		cred.ExpiresIn = tokens.ExpiresIn
	}

	if err := s.creds.Upsert(ctx, *cred); err != nil {
		return "", fmt.Errorf("store refreshed credential for %q: %w", cred.UserID, err)
	}

	s.logger.Info("token refreshed", "user_id", cred.UserID, "expires_in", tokens.ExpiresIn)
	return tokens.AccessToken, nil
}

func inboxOf(messages []model.Message) *model.Inbox {
	return &model.Inbox{
		Count:    len(messages),
		Messages: messages,
	}
}
