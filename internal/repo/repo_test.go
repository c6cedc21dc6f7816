package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite3", "file:"+filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// migrations are idempotent
	require.NoError(t, Migrate(ctx, db, "sqlite3"))
	return NewSQLRepository(db)
}

func TestLeads(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first := &Lead{Name: "Ivan", Phone: "+7 900 000 00 00", Interest: "svc-30", Message: "Need a 30 kVA unit", CreatedAt: base}
	id1, err := r.CreateLead(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, id1, first.ID)
	assert.Equal(t, LeadNew, first.Status)

	id2, err := r.CreateLead(ctx, &Lead{Name: "Li", Email: "li@example.com", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	t.Run("get", func(t *testing.T) {
		l, err := r.GetLead(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, "Ivan", l.Name)
		assert.Equal(t, "svc-30", l.Interest)
		assert.True(t, base.Equal(l.CreatedAt))

		_, err = r.GetLead(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		leads, err := r.ListLeads(ctx, LeadFilter{})
		require.NoError(t, err)
		require.Len(t, leads, 2)
		assert.Equal(t, id2, leads[0].ID)
		assert.Equal(t, id1, leads[1].ID)

		page, err := r.ListLeads(ctx, LeadFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, id1, page[0].ID)
	})

	t.Run("update status and filter", func(t *testing.T) {
		require.NoError(t, r.UpdateLeadStatus(ctx, id2, LeadSpam))

		spam, err := r.ListLeads(ctx, LeadFilter{Status: LeadSpam})
		require.NoError(t, err)
		require.Len(t, spam, 1)
		assert.Equal(t, id2, spam[0].ID)

		assert.ErrorIs(t, r.UpdateLeadStatus(ctx, 9999, LeadContacted), ErrNotFound)
		assert.Error(t, r.UpdateLeadStatus(ctx, id1, LeadStatus("archived")))
	})
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	all, err := r.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, len(seedProducts))

	stabilizers, err := r.ListProducts(ctx, ProductFilter{Category: CategoryStabilizer, MinCapacityKVA: 20})
	require.NoError(t, err)
	require.Len(t, stabilizers, 2)
	assert.Equal(t, "svc-30", stabilizers[0].Slug)
	assert.Equal(t, "svc-100", stabilizers[1].Slug)

	found, err := r.ListProducts(ctx, ProductFilter{Query: "ISOLATION"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, p := range found {
		assert.Equal(t, CategoryTransformer, p.Category)
	}

	p, err := r.GetProductBySlug(ctx, "sg-50")
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.CapacityKVA)

	_, err = r.GetProductBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithSSLMode(t *testing.T) {
	assert.Equal(t, "user=x sslmode=disable", withSSLMode("user=x sslmode=disable"))
	assert.Equal(t, "user=x sslmode=require", withSSLMode("user=x"))
	assert.Equal(t, "postgres://h/db?sslmode=require", withSSLMode("postgres://h/db"))
	assert.Equal(t, "postgres://h/db?connect_timeout=5&sslmode=require", withSSLMode("postgres://h/db?connect_timeout=5"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
