package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dativo-io/claimpilot/internal/automation"
	"github.com/dativo-io/claimpilot/internal/claims"
	"github.com/dativo-io/claimpilot/internal/invoke"
)

// NewClaimStore creates a claims store in a temp dir and registers t.Cleanup
// to close it.
func NewClaimStore(t *testing.T) *claims.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := claims.NewStore(filepath.Join(dir, "claims.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewAutomationStore creates an automation records store in a temp dir and
// registers t.Cleanup to close it.
func NewAutomationStore(t *testing.T) *automation.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := automation.NewStore(filepath.Join(dir, "automation.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewInvokeStore creates an AI invocation store in a temp dir and registers
// t.Cleanup to close it.
func NewInvokeStore(t *testing.T) *invoke.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := invoke.NewStore(filepath.Join(dir, "invocations.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// SeedClaim upserts a minimal open claim and returns its ID.
func SeedClaim(t *testing.T, store *claims.Store, id, orgID string) string {
	t.Helper()
	now := time.Now().UTC()
	c := &claims.Claim{
		ID:             id,
		OrgID:          orgID,
		Status:         claims.StatusOpen,
		AdjusterEmail:  "adjuster@example.com",
		HomeownerEmail: "homeowner@example.com",
		LastContactAt:  &now,
		LastActivityAt: &now,
	}
	if err := store.Upsert(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return id
}
