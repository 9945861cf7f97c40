package msgraph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailrelay/internal/domain/port/driven"
)

func newTestAuth(t *testing.T, handler http.HandlerFunc) (*Auth, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := NewAuthWithEndpoints(
		"client-id", "client-secret", "http://localhost/auth/callback",
		[]string{"User.Read", "Mail.Read", "offline_access"},
		server.URL+"/authorize", server.URL+"/token", server.URL,
		server.Client(),
	)
	return auth, server
}

// unsignedToken builds a JWT-shaped token whose claims can be decoded
// without verification.
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestAuth_AuthCodeURL(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {})

	u := auth.AuthCodeURL("state-123")

	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "response_mode=query")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "scope=")
}

func TestAuth_Exchange(t *testing.T) {
	var gotForm map[string]string
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"code":          r.PostFormValue("code"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "User.Read Mail.Read",
		})
	})

	ts, err := auth.Exchange(context.Background(), "auth-code-1")
	require.NoError(t, err)

	assert.Equal(t, "new-access", ts.AccessToken)
	assert.Equal(t, "new-refresh", ts.RefreshToken)
	assert.Equal(t, "Bearer", ts.TokenType)
	assert.EqualValues(t, 3600, ts.ExpiresIn)
	assert.Equal(t, "User.Read Mail.Read", ts.Scope)

	assert.Equal(t, "authorization_code", gotForm["grant_type"])
	assert.Equal(t, "auth-code-1", gotForm["code"])
	assert.Equal(t, "client-id", gotForm["client_id"])
	assert.Equal(t, "client-secret", gotForm["client_secret"])
	assert.Equal(t, "http://localhost/auth/callback", gotForm["redirect_uri"])
}

func TestAuth_ExchangeProviderRejection(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "AADSTS70008: The provided authorization code has expired.",
		})
	})

	_, err := auth.Exchange(context.Background(), "expired-code")

	var exchangeErr *driven.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Equal(t, "invalid_grant", exchangeErr.Code)
	assert.Contains(t, exchangeErr.Description, "AADSTS70008")
}

func TestAuth_Refresh(t *testing.T) {
	var gotForm map[string]string
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"refresh_token": r.PostFormValue("refresh_token"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "refreshed-access",
			"refresh_token": "rotated-refresh",
			"token_type":    "Bearer",
			"expires_in":    7200,
		})
	})

	ts, err := auth.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "refreshed-access", ts.AccessToken)
	assert.Equal(t, "rotated-refresh", ts.RefreshToken)
	assert.EqualValues(t, 7200, ts.ExpiresIn)

	assert.Equal(t, "refresh_token", gotForm["grant_type"])
	assert.Equal(t, "old-refresh", gotForm["refresh_token"])
}

func TestAuth_RefreshWithoutRotationKeepsOldToken(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	ts, err := auth.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "refreshed-access", ts.AccessToken)
	assert.Equal(t, "old-refresh", ts.RefreshToken,
		"provider omitted rotation, the previous refresh token must carry forward")
}

func TestAuth_RefreshConsentRevoked(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{
			name: "consent_required error code",
			body: map[string]string{
				"error":             "consent_required",
				"error_description": "The user or administrator has not consented.",
			},
		},
		{
			name: "interaction_required error code",
			body: map[string]string{
				"error":             "interaction_required",
				"error_description": "User interaction is required.",
			},
		},
		{
			name: "AADSTS65001 in description",
			body: map[string]string{
				"error":             "invalid_grant",
				"error_description": "AADSTS65001: The user or administrator has not consented to use the application.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(tt.body)
			})

			_, err := auth.Refresh(context.Background(), "revoked-refresh")
			assert.ErrorIs(t, err, driven.ErrConsentRequired)
		})
	}
}

func TestAuth_RefreshGenericRejection(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "AADSTS700082: The refresh token has expired due to inactivity.",
		})
	})

	_, err := auth.Refresh(context.Background(), "stale-refresh")

	var refreshErr *driven.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.NotErrorIs(t, err, driven.ErrConsentRequired)
	assert.Equal(t, "invalid_grant", refreshErr.Code)
	assert.Contains(t, refreshErr.Description, "AADSTS700082")
}

func TestAuth_FetchProfile(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "Bearer the-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"userPrincipalName": "alice@contoso.com",
			"displayName":       "Alice Example",
			"mail":              "alice@contoso.com",
		})
	})

	profile, err := auth.FetchProfile(context.Background(), "the-access-token")
	require.NoError(t, err)

	assert.Equal(t, "alice@contoso.com", profile.PrincipalName)
	assert.Equal(t, "Alice Example", profile.DisplayName)
}

func TestAuth_FetchProfileUnauthorized(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "InvalidAuthenticationToken", "message": "Access token is empty."},
		})
	})

	_, err := auth.FetchProfile(context.Background(), "bad-token")

	var idErr *driven.IdentityResolutionError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, http.StatusUnauthorized, idErr.Status)
	assert.Contains(t, idErr.Message, "Access token is empty")
}

func TestAuth_FetchProfileFallsBackToTokenClaims(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"displayName": "Alice Example"})
	})

	token := unsignedToken(t, map[string]any{"preferred_username": "alice@contoso.com"})

	profile, err := auth.FetchProfile(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@contoso.com", profile.PrincipalName)
}

func TestAuth_FetchProfileNoPrincipalAnywhere(t *testing.T) {
	auth, _ := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"displayName": "Mystery User"})
	})

	_, err := auth.FetchProfile(context.Background(), "opaque-access-token")

	var idErr *driven.IdentityResolutionError
	require.ErrorAs(t, err, &idErr)
	assert.Contains(t, idErr.Message, "userPrincipalName")
}
