package model

import "time"

// Credential holds one authenticated identity's token pair. UserID is the
// provider's stable principal name (e.g. "alice@contoso.com") and acts as
// the unique lookup key; at most one Credential exists per UserID.
//
// AccessToken and RefreshToken are plaintext at the domain boundary. The
// persistence adapter encrypts them before write and decrypts after read,
// so they are never at rest in the clear.
type Credential struct {
	ID           int64
	UserID       string
	AccessToken  string
	RefreshToken string // empty when the provider issued none; such a record cannot be refreshed
	ExpiresIn    int64  // provider-declared lifetime in seconds at issuance, advisory only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenSet is the plaintext result of a code exchange or refresh at the
// provider's token endpoint.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
}

// Profile is the subset of the provider's identity endpoint response the
// relay needs. PrincipalName is the stable identifier used as the
// Credential key.
type Profile struct {
	PrincipalName string
	DisplayName   string
	Mail          string
}
