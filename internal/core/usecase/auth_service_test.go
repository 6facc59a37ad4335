package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

type stubAPIKeyRepo struct {
	keys map[string]domain.APIKey
	err  error
}

func (r *stubAPIKeyRepo) FindByTokenHash(_ context.Context, tokenHash string) (domain.APIKey, error) {
	if r.err != nil {
		return domain.APIKey{}, r.err
	}
	key, ok := r.keys[tokenHash]
	if !ok {
		return domain.APIKey{}, domain.ErrNotFound
	}
	return key, nil
}

func (r *stubAPIKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	if r.err != nil {
		return r.err
	}
	if r.keys == nil {
		r.keys = make(map[string]domain.APIKey)
	}
	r.keys[key.TokenHash] = key
	return nil
}

func TestAuthenticateResolvesTenant(t *testing.T) {
	repo := &stubAPIKeyRepo{}
	if err := repo.Upsert(context.Background(), domain.APIKey{
		TokenHash: HashToken("secret-token"),
		TenantID:  "t1",
		Name:      "bootstrap",
		Active:    true,
	}); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	svc := NewAuthService(repo)

	key, err := svc.Authenticate(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if key.TenantID != "t1" {
		t.Fatalf("unexpected tenant: %s", key.TenantID)
	}

	// Surrounding whitespace is tolerated.
	if _, err := svc.Authenticate(context.Background(), " secret-token "); err != nil {
		t.Fatalf("trimmed token rejected: %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	repo := &stubAPIKeyRepo{keys: map[string]domain.APIKey{
		HashToken("inactive-token"): {TokenHash: HashToken("inactive-token"), TenantID: "t1", Active: false},
	}}
	svc := NewAuthService(repo)

	for _, token := range []string{"", "   ", "unknown-token", "inactive-token"} {
		if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestAuthenticatePropagatesStorageError(t *testing.T) {
	storageErr := errors.New("db locked")
	svc := NewAuthService(&stubAPIKeyRepo{err: storageErr})

	if _, err := svc.Authenticate(context.Background(), "any"); !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestAuditServiceListValidatesFilter(t *testing.T) {
	repo := &stubAuditRepo{entries: []domain.ValidationAudit{{ID: 1, TenantID: "t1"}}}
	svc := NewAuditService(repo)

	if _, err := svc.List(context.Background(), domain.ValidationAuditFilter{SchemaID: "bad id"}); !errors.Is(err, domain.ErrInvalidSchemaID) {
		t.Fatalf("expected ErrInvalidSchemaID, got %v", err)
	}

	entries, err := svc.List(context.Background(), domain.ValidationAuditFilter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
