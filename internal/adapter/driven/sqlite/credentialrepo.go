package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
	"mailrelay/internal/secrets"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Token values are sealed with the secrets codec before write and opened
// after read, so the database only ever holds ciphertext.
type CredentialRepo struct {
	db    *DB
	codec *secrets.Codec
}

// NewCredentialRepo creates a CredentialRepo backed by db, sealing token
// fields with codec.
func NewCredentialRepo(db *DB, codec *secrets.Codec) *CredentialRepo {
	return &CredentialRepo{db: db, codec: codec}
}

// Upsert stores or replaces the credential keyed by UserID. The user_id
// unique constraint makes concurrent upserts for the same user last-writer-
// wins instead of producing duplicates. created_at is preserved on update.
func (r *CredentialRepo) Upsert(ctx context.Context, cred model.Credential) error {
	sealedAccess, err := r.codec.Seal(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	// An absent refresh token is stored as the empty string, not sealed,
	// so Get can distinguish "no refresh token" from ciphertext.
	sealedRefresh := ""
	if cred.RefreshToken != "" {
		sealedRefresh, err = r.codec.Seal(cred.RefreshToken)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	const query = `
		INSERT INTO credentials (user_id, access_token, refresh_token, expires_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_in = excluded.expires_in,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Writer.ExecContext(ctx, query,
		cred.UserID, sealedAccess, sealedRefresh, cred.ExpiresIn, now, now,
	); err != nil {
		return fmt.Errorf("upsert credential for %q: %w", cred.UserID, err)
	}
	return nil
}

// Get retrieves the credential for the given user with token fields
// decrypted. Returns (nil, nil) if no credential exists.
func (r *CredentialRepo) Get(ctx context.Context, userID string) (*model.Credential, error) {
	const query = `
		SELECT id, user_id, access_token, refresh_token, expires_in, created_at, updated_at
		FROM credentials
		WHERE user_id = ?
	`
	return r.scanOne(r.db.Reader.QueryRowContext(ctx, query, userID))
}

// GetFirst retrieves the oldest stored credential, the single-tenant
// convenience lookup. Returns (nil, nil) when the store is empty.
func (r *CredentialRepo) GetFirst(ctx context.Context) (*model.Credential, error) {
	const query = `
		SELECT id, user_id, access_token, refresh_token, expires_in, created_at, updated_at
		FROM credentials
		ORDER BY id
		LIMIT 1
	`
	return r.scanOne(r.db.Reader.QueryRowContext(ctx, query))
}

// Delete removes the credential for the given user. Deleting a user with no
// stored credential is a no-op.
func (r *CredentialRepo) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM credentials WHERE user_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete credential for %q: %w", userID, err)
	}
	return nil
}

func (r *CredentialRepo) scanOne(row *sql.Row) (*model.Credential, error) {
	var cred model.Credential
	var sealedAccess, sealedRefresh string
	var createdAt, updatedAt string

	err := row.Scan(&cred.ID, &cred.UserID, &sealedAccess, &sealedRefresh,
		&cred.ExpiresIn, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	cred.AccessToken, err = r.codec.Open(sealedAccess)
	if err != nil {
		return nil, fmt.Errorf("open access token for %q: %w", cred.UserID, err)
	}

	if sealedRefresh != "" {
		cred.RefreshToken, err = r.codec.Open(sealedRefresh)
		if err != nil {
			return nil, fmt.Errorf("open refresh token for %q: %w", cred.UserID, err)
		}
	}

	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %q: %w", cred.UserID, err)
	}
	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for %q: %w", cred.UserID, err)
	}

	return &cred, nil
}

// parseTime parses timestamps written by Upsert. The space-separated layout
// is accepted for rows written by external tooling.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
