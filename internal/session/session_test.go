package session

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

func testSession() *Session {
	return &Session{
		ID:      "s1",
		Members: []string{"Alice", "Bob"},
		Items: []models.LineItem{
			{Name: "Milk", Quantity: 1, UnitPrice: 350, ExtendedPrice: 350, Taxable: true},
			{Name: "Bread", Quantity: 2, UnitPrice: 200, ExtendedPrice: 400},
		},
		Assignment: models.Assignment{},
		Totals:     models.ReceiptTotals{Tax: 28, DeclaredTax: true},
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := testSession()
	s.Assignment.Assign(0, "Alice")

	snap := s.Snapshot()

	// Writes after the snapshot must not leak into it.
	s.Assignment.Assign(0, "Alice", "Bob")
	s.Items[0].Name = "Changed"
	s.Version = 99

	if len(snap.Assignment[0]) != 1 {
		t.Errorf("snapshot assignment changed: %v", snap.Assignment[0])
	}
	if snap.Items[0].Name != "Milk" {
		t.Errorf("snapshot item changed: %q", snap.Items[0].Name)
	}
	if snap.Version != 0 {
		t.Errorf("snapshot version changed: %d", snap.Version)
	}
}

func TestReplaceAssignment(t *testing.T) {
	s := testSession()

	a := models.Assignment{}
	a.Assign(0, "Alice")
	a.Assign(1, "Alice", "Bob")
	if err := s.ReplaceAssignment(a, 0); err != nil {
		t.Fatalf("ReplaceAssignment() error = %v", err)
	}
	if s.Version != 1 {
		t.Errorf("version = %d, want 1", s.Version)
	}

	// Stale version loses.
	err := s.ReplaceAssignment(a, 0)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale write error = %v, want ErrVersionConflict", err)
	}
}

func TestReplaceAssignmentValidation(t *testing.T) {
	s := testSession()

	out := models.Assignment{}
	out.Assign(7, "Alice")
	if err := s.ReplaceAssignment(out, 0); err == nil {
		t.Error("out-of-range item index accepted")
	}

	bad := models.Assignment{0: map[string]decimal.Decimal{"Alice": decimal.Zero}}
	if err := s.ReplaceAssignment(bad, 0); err == nil {
		t.Error("zero weight accepted")
	}
	if s.Version != 0 {
		t.Errorf("failed writes bumped version to %d", s.Version)
	}
}

func TestAddItem(t *testing.T) {
	s := testSession()

	tip, err := models.NewCustomItem("Tip", 1, money.Cents(500), false)
	if err != nil {
		t.Fatalf("NewCustomItem() error = %v", err)
	}
	idx := s.AddItem(tip)
	if idx != 2 {
		t.Errorf("index = %d, want 2", idx)
	}
	if s.Version != 1 {
		t.Errorf("version = %d, want 1", s.Version)
	}
	if !s.Items[idx].Custom {
		t.Errorf("item not marked custom: %+v", s.Items[idx])
	}
}

func TestAllocateSnapshot(t *testing.T) {
	s := testSession()
	s.Assignment.Assign(0, "Alice")
	s.Assignment.Assign(1, "Alice", "Bob")

	res, err := s.Snapshot().Allocate()
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if res.Summaries["Alice"].Total != 578 {
		t.Errorf("Alice total = %d, want 578", res.Summaries["Alice"].Total)
	}
	if res.Summaries["Bob"].Total != 200 {
		t.Errorf("Bob total = %d, want 200", res.Summaries["Bob"].Total)
	}
	if res.GrandTotal != 778 {
		t.Errorf("grand total = %d, want 778", res.GrandTotal)
	}
}
