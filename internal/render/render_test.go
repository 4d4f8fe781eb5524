package render

import (
	"strings"
	"testing"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/calculator"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
)

func TestSummary(t *testing.T) {
	items := []models.LineItem{
		{Name: "Milk", Quantity: 1, UnitPrice: 350, ExtendedPrice: 350, Taxable: true},
		{Name: "Bread", Quantity: 2, UnitPrice: 200, ExtendedPrice: 400},
	}
	assignment := models.Assignment{}
	assignment.Assign(0, "Alice")
	assignment.Assign(1, "Alice", "Bob")

	res, err := calculator.Allocate(items, assignment, 28)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	text := Summary("January 5, 2026", []string{"Alice", "Bob"}, res)

	for _, want := range []string{
		"January 5, 2026:",
		"Alice: $5.78",
		"1x Milk - $3.50",
		"1x Bread - $2.00",
		"tax - $0.28",
		"Bob: $2.00",
		"Grand Total = $7.78",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	// Member order is preserved in the output.
	if strings.Index(text, "Alice:") > strings.Index(text, "Bob:") {
		t.Errorf("people out of member order:\n%s", text)
	}
}

func TestSummaryWithoutDate(t *testing.T) {
	items := []models.LineItem{{Name: "Milk", Quantity: 1, UnitPrice: 350, ExtendedPrice: 350}}
	assignment := models.Assignment{}
	assignment.Assign(0, "Alice")

	res, err := calculator.Allocate(items, assignment, 0)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	text := Summary("", nil, res)
	if strings.HasPrefix(text, ":") {
		t.Errorf("dateless summary starts with a stray colon:\n%s", text)
	}
	if !strings.Contains(text, "Grand Total = $3.50") {
		t.Errorf("summary missing grand total:\n%s", text)
	}
}
