// Package msgraph implements the OAuthProvider and MailClient ports against
// the Microsoft identity platform (Azure AD v2.0) and Microsoft Graph.
package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
)

// DefaultGraphURL is the production Microsoft Graph base URL.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

// Compile-time interface satisfaction check.
var _ driven.OAuthProvider = (*Auth)(nil)

// Auth implements the driven.OAuthProvider port using golang.org/x/oauth2
// against the tenant's v2.0 authorize/token endpoints.
type Auth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
	graphURL   string
}

// NewAuth creates an Auth for the registered client against the given
// tenant. Scopes should include offline_access so the provider issues
// refresh tokens. An empty graphURL falls back to the production endpoint.
func NewAuth(clientID, clientSecret, tenantID, redirectURL string, scopes []string, graphURL string) *Auth {
	endpoint := microsoft.AzureADEndpoint(tenantID)
	// Azure AD wants client credentials in the form body, not basic auth.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if graphURL == "" {
		graphURL = DefaultGraphURL
	}

	return &Auth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		graphURL:   graphURL,
	}
}

// NewAuthWithEndpoints creates an Auth with explicit endpoint URLs and HTTP
// client. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewAuthWithEndpoints(clientID, clientSecret, redirectURL string, scopes []string, authURL, tokenURL, graphURL string, httpClient *http.Client) *Auth {
	return &Auth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		graphURL:   graphURL,
	}
}

// AuthCodeURL builds the tenant authorization URL for the code flow.
// response_mode=query matches the registered redirect handling.
func (a *Auth) AuthCodeURL(state string) string {
	return a.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// Exchange redeems an authorization code for an initial token pair.
func (a *Auth) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	tok, err := a.cfg.Exchange(a.oauthContext(ctx), code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &driven.TokenExchangeError{
				Status:      retrieveStatus(re),
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
			}
		}
		return nil, &driven.TokenExchangeError{Description: err.Error()}
	}
	if tok.AccessToken == "" {
		return nil, &driven.TokenExchangeError{Description: "provider response missing access_token"}
	}

	return tokenSet(tok), nil
}

// Refresh redeems a refresh token for a new token pair. The token source is
// seeded with only the refresh token, forcing an immediate refresh grant.
// When the provider does not rotate the refresh token, the source carries
// the previous one forward into the result.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	src := a.cfg.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if isConsentFailure(re) {
				return nil, fmt.Errorf("%w: %s", driven.ErrConsentRequired, re.ErrorDescription)
			}
			return nil, &driven.RefreshError{
				Status:      retrieveStatus(re),
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
			}
		}
		return nil, &driven.RefreshError{Description: err.Error()}
	}

	return tokenSet(tok), nil
}

// FetchProfile resolves the principal name via GET /me. When the profile
// omits userPrincipalName, the access token's unverified claims are
// consulted for preferred_username before giving up.
func (a *Auth) FetchProfile(ctx context.Context, accessToken string) (*model.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.graphURL+"/me", nil)
	if err != nil {
		return nil, &driven.IdentityResolutionError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &driven.IdentityResolutionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &driven.IdentityResolutionError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.IdentityResolutionError{
			Status:  resp.StatusCode,
			Message: graphErrorMessage(body, resp.StatusCode),
		}
	}

	var profile struct {
		UserPrincipalName string `json:"userPrincipalName"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, &driven.IdentityResolutionError{Status: resp.StatusCode, Message: "malformed profile response"}
	}

	principal := profile.UserPrincipalName
	if principal == "" {
		principal = principalFromToken(accessToken)
	}
	if principal == "" {
		return nil, &driven.IdentityResolutionError{Status: resp.StatusCode, Message: "profile missing userPrincipalName"}
	}

	return &model.Profile{
		PrincipalName: principal,
		DisplayName:   profile.DisplayName,
		Mail:          profile.Mail,
	}, nil
}

// oauthContext injects the adapter's HTTP client into the oauth2 transport.
func (a *Auth) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// isConsentFailure reports whether a provider rejection requires admin
// consent rather than another refresh attempt. AADSTS65001 is the Azure AD
// code for consent not granted or revoked.
func isConsentFailure(re *oauth2.RetrieveError) bool {
	switch re.ErrorCode {
	case "consent_required", "interaction_required":
		return true
	}
	return strings.Contains(re.ErrorDescription, "AADSTS65001")
}

func retrieveStatus(re *oauth2.RetrieveError) int {
	if re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}

// tokenSet maps an oauth2 token to the domain TokenSet.
func tokenSet(tok *oauth2.Token) *model.TokenSet {
	scope, _ := tok.Extra("scope").(string)
	return &model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        scope,
		ExpiresIn:    expiresIn(tok),
	}
}

// expiresIn recovers the provider-declared expires_in from the raw token
// response, falling back to the computed expiry when absent.
func expiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			return int64(d.Seconds())
		}
	}
	return 0
}

// principalFromToken decodes the access token's claims without verifying
// the signature and returns preferred_username. Verification is the
// provider's job; this is only an identity hint when /me omits the
// principal. Returns "" for opaque or claimless tokens.
func principalFromToken(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	principal, _ := claims["preferred_username"].(string)
	return principal
}

// graphErrorMessage extracts Graph's {"error":{"message":...}} payload,
// falling back to a status-derived message.
func graphErrorMessage(body []byte, status int) string {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return http.StatusText(status)
}
