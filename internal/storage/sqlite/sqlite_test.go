package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/session"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSession() *session.Session {
	s := &session.Session{
		ID:        "sess-1",
		OrderDate: "January 5, 2026",
		Members:   []string{"Alice", "Bob"},
		Items: []models.LineItem{
			{Name: "Milk", Quantity: 1, UnitPrice: 350, ExtendedPrice: 350, Taxable: true, SourceLine: 4},
			{Name: "Bread", Quantity: 2, UnitPrice: 200, ExtendedPrice: 400, Discount: -50},
		},
		Assignment: models.Assignment{},
		Totals: models.ReceiptTotals{
			Subtotal: 700, Tax: 28, GrandTotal: 728,
			DeclaredSubtotal: true, DeclaredTax: true, DeclaredTotal: true,
		},
		Warnings:  []models.ParseWarning{{Line: 7, ItemIndex: -1, Message: "discount with no preceding item"}},
		Anomalies: []models.Anomaly{{Kind: models.QuantityMismatch, ItemIndex: 1, Detail: "2 x 2.00 != 4.00 - 0.50"}},
		CreatedAt: 1736035200,
	}
	s.Assignment.Assign(0, "Alice")
	s.Assignment[1] = map[string]decimal.Decimal{
		"Alice": decimal.RequireFromString("0.5"),
		"Bob":   decimal.RequireFromString("1.5"),
	}
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := seedSession()
	require.NoError(t, store.CreateSession(ctx, want))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, want.OrderDate, got.OrderDate)
	assert.Equal(t, want.Members, got.Members)
	assert.Equal(t, want.Items, got.Items)
	assert.Equal(t, want.Totals, got.Totals)
	assert.Equal(t, want.Warnings, got.Warnings)
	assert.Equal(t, want.Anomalies, got.Anomalies)
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
	assert.Equal(t, int64(0), got.Version)

	// Decimal weights survive the TEXT round trip exactly.
	require.Len(t, got.Assignment, 2)
	assert.True(t, got.Assignment[1]["Bob"].Equal(decimal.RequireFromString("1.5")))

	_, err = store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, seedSession()))

	a := models.Assignment{}
	a.Assign(0, "Bob")
	a.Assign(1, "Alice", "Bob")

	v, err := store.ReplaceAssignment(ctx, "sess-1", a, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.Assignment[0], 1)
	assert.Contains(t, got.Assignment[0], "Bob")

	// A writer holding the old version loses.
	_, err = store.ReplaceAssignment(ctx, "sess-1", a, 0)
	assert.ErrorIs(t, err, session.ErrVersionConflict)

	_, err = store.ReplaceAssignment(ctx, "nope", a, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceAssignmentValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, seedSession()))

	out := models.Assignment{}
	out.Assign(99, "Bob")
	_, err := store.ReplaceAssignment(ctx, "sess-1", out, 0)
	assert.Error(t, err, "out-of-range item index must be rejected")

	bad := models.Assignment{0: map[string]decimal.Decimal{"Alice": decimal.Zero}}
	_, err = store.ReplaceAssignment(ctx, "sess-1", bad, 0)
	assert.Error(t, err, "zero weight must be rejected")

	neg := models.Assignment{0: map[string]decimal.Decimal{"Alice": decimal.NewFromInt(-1)}}
	_, err = store.ReplaceAssignment(ctx, "sess-1", neg, 0)
	assert.Error(t, err, "negative weight must be rejected")

	// Rejected writes roll back: version and assignment are untouched.
	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Version)
	assert.Len(t, got.Assignment, 2)
}

func TestAddItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, seedSession()))

	tip := models.LineItem{Name: "Tip", Quantity: 1, UnitPrice: 500, ExtendedPrice: 500, Custom: true}
	idx, err := store.AddItem(ctx, "sess-1", tip)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Items, 3)
	assert.Equal(t, tip, got.Items[2])

	_, err = store.AddItem(ctx, "nope", tip)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, seedSession()))

	require.NoError(t, store.DeleteSession(ctx, "sess-1"))
	_, err := store.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.DeleteSession(ctx, "sess-1"), storage.ErrNotFound)
}

func TestReopenKeepsSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, seedSession()))
	require.NoError(t, store.Close())

	reopened, err := New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, got.Members)
	assert.Len(t, got.Items, 2)
}
