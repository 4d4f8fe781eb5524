package calculator

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

func item(name string, qty int64, unit, ext money.Cents, taxable bool) models.LineItem {
	return models.LineItem{Name: name, Quantity: qty, UnitPrice: unit, ExtendedPrice: ext, Taxable: taxable}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name         string
		items        []models.LineItem
		assign       func(a models.Assignment)
		tax          money.Cents
		wantErr      error
		validateFunc func(t *testing.T, res *models.AllocationResult)
	}{
		{
			name: "milk and bread scenario",
			items: []models.LineItem{
				item("Milk", 1, 350, 350, true),
				item("Bread", 2, 200, 400, false),
			},
			assign: func(a models.Assignment) {
				a.Assign(0, "Alice")
				a.Assign(1, "Alice", "Bob")
			},
			tax: 28,
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				alice := res.Summaries["Alice"]
				bob := res.Summaries["Bob"]
				if alice.ItemShare != 550 {
					t.Errorf("Alice itemShare = %d, want 550", alice.ItemShare)
				}
				if alice.TaxShare != 28 {
					t.Errorf("Alice taxShare = %d, want 28", alice.TaxShare)
				}
				if alice.Total != 578 {
					t.Errorf("Alice total = %d, want 578", alice.Total)
				}
				if bob.ItemShare != 200 || bob.TaxShare != 0 || bob.Total != 200 {
					t.Errorf("Bob = %d/%d/%d, want 200/0/200", bob.ItemShare, bob.TaxShare, bob.Total)
				}
				if res.GrandTotal != 778 {
					t.Errorf("grand total = %d, want 778", res.GrandTotal)
				}
				if alice.Total+bob.Total != res.GrandTotal {
					t.Errorf("totals %d do not reconcile to %d", alice.Total+bob.Total, res.GrandTotal)
				}
			},
		},
		{
			name: "discounted price is what gets split",
			items: []models.LineItem{
				{Name: "Bread", Quantity: 2, UnitPrice: 200, ExtendedPrice: 400, Discount: -50},
			},
			assign: func(a models.Assignment) {
				a.Assign(0, "Alice", "Bob")
			},
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				// 3.50 net, not the nominal 4.00: 1.75 each.
				for _, p := range []string{"Alice", "Bob"} {
					if got := res.Summaries[p].ItemShare; got != 175 {
						t.Errorf("%s itemShare = %d, want 175", p, got)
					}
				}
				if res.GrandTotal != 350 {
					t.Errorf("grand total = %d, want 350", res.GrandTotal)
				}
			},
		},
		{
			name:  "three way split distributes the leftover cent once",
			items: []models.LineItem{item("Pizza", 1, 1000, 1000, false)},
			assign: func(a models.Assignment) {
				a.Assign(0, "Alice", "Bob", "Carol")
			},
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				var sum money.Cents
				bumped := 0
				for _, p := range []string{"Alice", "Bob", "Carol"} {
					got := res.Summaries[p].Total
					sum += got
					switch got {
					case 334:
						bumped++
					case 333:
					default:
						t.Errorf("%s total = %d, want 333 or 334", p, got)
					}
				}
				if sum != 1000 {
					t.Errorf("totals sum to %d, want 1000", sum)
				}
				if bumped != 1 {
					t.Errorf("%d people got the extra cent, want 1", bumped)
				}
				// Equal fractional remainders tie-break on person ID.
				if res.Summaries["Alice"].Total != 334 {
					t.Errorf("Alice total = %d, want the extra cent on the first person ID", res.Summaries["Alice"].Total)
				}
				if res.Residual != 1 {
					t.Errorf("residual = %d, want 1", res.Residual)
				}
			},
		},
		{
			name: "weighted split",
			items: []models.LineItem{
				item("Wine", 1, 999, 999, false),
			},
			assign: func(a models.Assignment) {
				a[0] = map[string]decimal.Decimal{
					"Alice": decimal.NewFromInt(1),
					"Bob":   decimal.NewFromInt(2),
				}
			},
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				if got := res.Summaries["Alice"].ItemShare; got != 333 {
					t.Errorf("Alice itemShare = %d, want 333", got)
				}
				if got := res.Summaries["Bob"].ItemShare; got != 666 {
					t.Errorf("Bob itemShare = %d, want 666", got)
				}
			},
		},
		{
			name: "fractional weights",
			items: []models.LineItem{
				item("Cake", 1, 700, 700, false),
			},
			assign: func(a models.Assignment) {
				half := decimal.RequireFromString("0.5")
				a[0] = map[string]decimal.Decimal{
					"Alice": half,
					"Bob":   decimal.RequireFromString("1.5"),
					"Carol": half.Add(half),
				}
			},
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				// Weights 0.5 : 1.5 : 1.0 over 7.00.
				want := map[string]money.Cents{"Alice": 117, "Bob": 350, "Carol": 233}
				var sum money.Cents
				for p, w := range want {
					got := res.Summaries[p].Total
					if got != w {
						t.Errorf("%s total = %d, want %d", p, got, w)
					}
					sum += got
				}
				if sum != 700 {
					t.Errorf("totals sum to %d, want 700", sum)
				}
			},
		},
		{
			name: "only non-taxable items means zero tax share",
			items: []models.LineItem{
				item("Soda", 1, 150, 150, true),
				item("Bread", 1, 250, 250, false),
			},
			assign: func(a models.Assignment) {
				a.Assign(0, "Alice")
				a.Assign(1, "Bob")
			},
			tax: 11,
			validateFunc: func(t *testing.T, res *models.AllocationResult) {
				if got := res.Summaries["Bob"].TaxShare; got != 0 {
					t.Errorf("Bob taxShare = %d, want exactly 0", got)
				}
				if got := res.Summaries["Alice"].TaxShare; got != 11 {
					t.Errorf("Alice taxShare = %d, want 11", got)
				}
			},
		},
		{
			name:  "unassigned item",
			items: []models.LineItem{item("Milk", 1, 350, 350, true)},
			assign: func(a models.Assignment) {
			},
			wantErr: &UnassignedItemError{},
		},
		{
			name:  "empty assignee set",
			items: []models.LineItem{item("Milk", 1, 350, 350, true)},
			assign: func(a models.Assignment) {
				a[0] = map[string]decimal.Decimal{}
			},
			wantErr: &EmptyAssignmentError{},
		},
		{
			name:  "zero weight",
			items: []models.LineItem{item("Milk", 1, 350, 350, true)},
			assign: func(a models.Assignment) {
				a[0] = map[string]decimal.Decimal{"Alice": decimal.Zero}
			},
			wantErr: &InvalidWeightError{},
		},
		{
			name:  "negative weight",
			items: []models.LineItem{item("Milk", 1, 350, 350, true)},
			assign: func(a models.Assignment) {
				a[0] = map[string]decimal.Decimal{"Alice": decimal.NewFromInt(-1)}
			},
			wantErr: &InvalidWeightError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment := models.Assignment{}
			tt.assign(assignment)

			res, err := Allocate(tt.items, assignment, tt.tax)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Allocate() succeeded, want error %T", tt.wantErr)
				}
				if reflect.TypeOf(err) != reflect.TypeOf(tt.wantErr) {
					t.Fatalf("Allocate() error = %v (%T), want %T", err, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate() error = %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, res)
			}
		})
	}
}

func TestAllocateIdempotent(t *testing.T) {
	items := []models.LineItem{
		item("Milk", 1, 350, 350, true),
		item("Pizza", 1, 1000, 1000, false),
	}
	assignment := models.Assignment{}
	assignment.Assign(0, "Alice")
	assignment.Assign(1, "Alice", "Bob", "Carol")

	first, err := Allocate(items, assignment, 28)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	second, err := Allocate(items, assignment, 28)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs over the same input differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAllocateConservesEveryItem(t *testing.T) {
	// Shares of one item must sum exactly to its net price regardless of
	// how many people share it or their weights. With a single item per
	// run, the rounded per-person totals summing to the item price is
	// exactly that property.
	weights := []map[string]decimal.Decimal{
		{"A": decimal.NewFromInt(1), "B": decimal.NewFromInt(1), "C": decimal.NewFromInt(1)},
		{"A": decimal.NewFromInt(1), "B": decimal.NewFromInt(6)},
		{"A": decimal.RequireFromString("0.1"), "B": decimal.RequireFromString("0.7"), "C": decimal.RequireFromString("1.3")},
	}
	prices := []money.Cents{1, 99, 100, 333, 997, 123456}

	for _, w := range weights {
		for _, price := range prices {
			items := []models.LineItem{item("X", 1, price, price, false)}
			assignment := models.Assignment{0: w}
			res, err := Allocate(items, assignment, 0)
			if err != nil {
				t.Fatalf("Allocate() error = %v", err)
			}
			var sum money.Cents
			for _, s := range res.Summaries {
				sum += s.Total
			}
			if sum != price {
				t.Errorf("weights %v price %d: shares sum to %d", w, price, sum)
			}
		}
	}
}

func TestAllocateNoTaxableBase(t *testing.T) {
	// Tax with nothing taxable cannot be attributed to anyone; everyone's
	// tax share is zero and the grand total is item-only.
	items := []models.LineItem{item("Bread", 1, 400, 400, false)}
	assignment := models.Assignment{}
	assignment.Assign(0, "Alice")

	res, err := Allocate(items, assignment, 28)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if res.Summaries["Alice"].TaxShare != 0 {
		t.Errorf("taxShare = %d, want 0", res.Summaries["Alice"].TaxShare)
	}
	if res.GrandTotal != 400 {
		t.Errorf("grand total = %d, want 400", res.GrandTotal)
	}
}
