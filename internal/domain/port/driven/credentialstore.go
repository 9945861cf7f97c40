package driven

import (
	"context"

	"mailrelay/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer is responsible for encryption/decryption;
// this interface operates on plaintext token values at the domain boundary.
type CredentialStore interface {
	// Get retrieves the credential for the given user. Returns (nil, nil)
	// if no credential exists for that user.
	Get(ctx context.Context, userID string) (*model.Credential, error)

	// GetFirst retrieves the single stored credential in single-tenant
	// deployments. Returns (nil, nil) when the store is empty.
	GetFirst(ctx context.Context) (*model.Credential, error)

	// Upsert stores or replaces the credential keyed by UserID. The write
	// is atomic with respect to the user_id unique constraint: concurrent
	// upserts for the same user never produce duplicate records.
	Upsert(ctx context.Context, cred model.Credential) error

	// Delete removes the credential for the given user. Deleting a user
	// with no stored credential is not an error.
	Delete(ctx context.Context, userID string) error
}
