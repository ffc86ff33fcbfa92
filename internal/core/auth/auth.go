// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/itemfilter/internal/core/db"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// principalKey is the context key for the authenticated key label.
const principalKey = contextKey("principal")

// KeyStore looks up stored key hashes. Implemented by *db.APIKeyStore.
type KeyStore interface {
	GetByHash(ctx context.Context, keyHash []byte) (db.APIKeyRecord, error)
	TouchLastUsed(ctx context.Context, id string, t time.Time) error
}

// KeyCreator stores new key hashes. Implemented by *db.APIKeyStore.
type KeyCreator interface {
	Create(ctx context.Context, id string, keyHash []byte, label string) error
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Only methods listed as protected require a key.
type Authenticator struct {
	secrets   map[string][]byte
	keys      KeyStore
	protected map[string]bool
	now       func() time.Time
}

// NewAuthenticator creates an authenticator guarding the given full gRPC
// method names (e.g. "/itemfilter.v1.FilterService/SaveFilter").
func NewAuthenticator(secrets map[string][]byte, keys KeyStore, protectedMethods ...string) *Authenticator {
	protected := make(map[string]bool, len(protectedMethods))
	for _, m := range protectedMethods {
		protected[m] = true
	}
	return &Authenticator{
		secrets:   secrets,
		keys:      keys,
		protected: protected,
		now:       time.Now,
	}
}

// Authenticate validates an API key and returns its label on success.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	rec, err := a.keys.GetByHash(ctx, ComputeHMAC(secret, apiKey))
	if errors.Is(err, db.ErrAPIKeyNotFound) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if rec.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle on last_used_at writes
	now := a.now()
	if !rec.LastUsedAt.Valid || now.Sub(rec.LastUsedAt.Time) > time.Minute {
		_ = a.keys.TouchLastUsed(ctx, rec.APIKeyID, now)
	}

	return rec.Label, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates protected methods.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.protected[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		principal, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStoreUnavailable):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(context.WithValue(ctx, principalKey, principal), req)
	}
}

// PrincipalFromContext returns the label of the key that authenticated the
// request, or "" for unauthenticated methods.
func PrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey).(string); ok {
		return p
	}
	return ""
}

// IssueKey generates a key under the newest secret, stores its hash with
// label and returns the raw key. The raw key is not recoverable later.
func IssueKey(ctx context.Context, secrets map[string][]byte, store KeyCreator, label string) (string, error) {
	if len(secrets) == 0 {
		return "", ErrNoSecrets
	}
	// Secret IDs are UUIDv7 hex; the greatest is the newest.
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	secretID := ids[len(ids)-1]

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return "", err
	}
	id := uuid.Must(uuid.NewV7()).String()
	if err := store.Create(ctx, id, ComputeHMAC(secrets[secretID], key), label); err != nil {
		return "", err
	}
	return key, nil
}
