package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// ErrEncryptionKeyInvalid is returned when the configured key is not a
// valid AES-256 key.
var ErrEncryptionKeyInvalid = errors.New("encryption key must be 32 bytes")

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Token values are encrypted with AES-256-GCM before write and decrypted
// after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if len(key) != 32 {
		return nil, ErrEncryptionKeyInvalid
	}
	return &CredentialRepo{db: db, key: key}, nil
}

// Get retrieves the credential snapshot for the given user.
func (r *CredentialRepo) Get(ctx context.Context, userID string) (model.Credential, error) {
	const query = `SELECT access_token, refresh_token, updated_at FROM clio_credentials WHERE user_id = ?`

	var access, refresh, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&access, &refresh, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, driven.ErrUserNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("get credential for %q: %w", userID, err)
	}

	cred := model.Credential{UserID: userID}

	if cred.AccessToken, err = r.decrypt(access); err != nil {
		return model.Credential{}, fmt.Errorf("decrypt access token for %q: %w", userID, err)
	}
	if cred.RefreshToken, err = r.decrypt(refresh); err != nil {
		return model.Credential{}, fmt.Errorf("decrypt refresh token for %q: %w", userID, err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Credential{}, fmt.Errorf("parse updated_at for %q: %w", userID, err)
	}

	return cred, nil
}

// Save writes a new token pair for the user, creating the row when absent.
// An empty refreshToken leaves the stored refresh token intact.
func (r *CredentialRepo) Save(ctx context.Context, userID, accessToken, refreshToken string) error {
	access, refresh, err := r.encryptPair(accessToken, refreshToken)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO clio_credentials (user_id, access_token, refresh_token, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN ? != '' THEN excluded.refresh_token ELSE refresh_token END,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID, access, refresh, refreshToken); err != nil {
		return fmt.Errorf("save credential for %q: %w", userID, err)
	}
	return nil
}

// Update overwrites the tokens for an existing user only; a vanished row
// surfaces as ErrUserNotFound so a refresh racing an account deletion does
// not resurrect credentials. Empty refreshToken keeps the stored one.
func (r *CredentialRepo) Update(ctx context.Context, userID, accessToken, refreshToken string) error {
	access, refresh, err := r.encryptPair(accessToken, refreshToken)
	if err != nil {
		return err
	}

	const query = `
		UPDATE clio_credentials
		SET access_token = ?,
		    refresh_token = CASE WHEN ? != '' THEN ? ELSE refresh_token END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query, access, refreshToken, refresh, userID)
	if err != nil {
		return fmt.Errorf("update credential for %q: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential for %q: rows affected: %w", userID, err)
	}
	if affected == 0 {
		return driven.ErrUserNotFound
	}
	return nil
}

// Delete removes the credential for the given user.
func (r *CredentialRepo) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM clio_credentials WHERE user_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete credential for %q: %w", userID, err)
	}
	return nil
}

func (r *CredentialRepo) encryptPair(accessToken, refreshToken string) (string, string, error) {
	access, err := r.encrypt(accessToken)
	if err != nil {
		return "", "", fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := r.encrypt(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("encrypt refresh token: %w", err)
	}
	return access, refresh, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
