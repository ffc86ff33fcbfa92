package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAPIKeyNotFound is returned when no key matches a hash or id.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKeyRecord is the stored form of an API key.
type APIKeyRecord struct {
	APIKeyID   string       `db:"api_key_id"`
	Label      string       `db:"label"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

// APIKeyStore persists HMAC hashes of API keys. Raw keys are never stored.
type APIKeyStore struct {
	queries *Queries
}

// NewAPIKeyStore creates a store using the named queries.
func NewAPIKeyStore(queries *Queries) *APIKeyStore {
	return &APIKeyStore{queries: queries}
}

// Create stores a key hash under id.
func (s *APIKeyStore) Create(ctx context.Context, id string, keyHash []byte, label string) error {
	if _, err := s.queries.Exec(ctx, "insert-api-key", id, keyHash, label, time.Now().UTC()); err != nil {
		return unavailable("insert api key", err)
	}
	return nil
}

// GetByHash returns the key stored under keyHash.
func (s *APIKeyStore) GetByHash(ctx context.Context, keyHash []byte) (APIKeyRecord, error) {
	var rec APIKeyRecord
	err := s.queries.Get(ctx, "get-api-key-by-hash", &rec, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return APIKeyRecord{}, ErrAPIKeyNotFound
	}
	if err != nil {
		return APIKeyRecord{}, unavailable("get api key", err)
	}
	return rec, nil
}

// TouchLastUsed records a use of the key at t.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id string, t time.Time) error {
	if _, err := s.queries.Exec(ctx, "update-last-used", t.UTC(), id); err != nil {
		return unavailable("update last used", err)
	}
	return nil
}

// Revoke marks the key revoked. Revoking twice reports ErrAPIKeyNotFound.
func (s *APIKeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.queries.Exec(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return unavailable("revoke api key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("revoke api key", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAPIKeyNotFound, id)
	}
	return nil
}
