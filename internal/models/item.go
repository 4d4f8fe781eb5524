package models

import (
	"fmt"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// LineItem is a single structured line from a receipt, or a custom item
// added directly by a person. Instances are immutable once constructed;
// any correction produces a new instance via WithExtendedPrice.
type LineItem struct {
	// Name is the item description, never empty.
	Name string

	// Quantity is the unit count, at least 1. For weight-based items the
	// quantity is 1 and ExtendedPrice is authoritative.
	Quantity int64

	// UnitPrice is the per-unit price in cents. Zero when the price token
	// could not be parsed (see PriceUnparsed).
	UnitPrice money.Cents

	// ExtendedPrice is the line total in cents, normally
	// Quantity * UnitPrice. It may legitimately diverge for weight-based
	// pricing; divergence is recorded by the reconciliation checker, not
	// silently overwritten.
	ExtendedPrice money.Cents

	// Discount is zero or negative, applied against ExtendedPrice. Set by
	// discount lines attaching to this item.
	Discount money.Cents

	// Taxable reports whether this line contributes to the taxable base.
	Taxable bool

	// WeightBased marks items priced by weight ("1.23 lb @ 2.99/lb"),
	// which are exempt from the quantity*unit==extended check.
	WeightBased bool

	// Custom marks items entered by a person rather than parsed.
	Custom bool

	// Corrected marks items rebuilt by the reconciliation checker.
	Corrected bool

	// PriceUnparsed marks items whose price token was malformed and whose
	// price defaulted to zero; the UI highlights these for manual fix-up.
	PriceUnparsed bool

	// SourceLine is the 1-based receipt line this item came from, zero
	// for custom items.
	SourceLine int
}

// NetPrice returns the extended price after discount.
func (li LineItem) NetPrice() money.Cents {
	return li.ExtendedPrice + li.Discount
}

// WithExtendedPrice returns a corrected copy of the item with a new
// extended price. The original is left untouched.
func (li LineItem) WithExtendedPrice(p money.Cents) LineItem {
	out := li
	out.ExtendedPrice = p
	out.Corrected = true
	return out
}

// WithDiscount returns a copy of the item with the given discount folded
// in on top of any existing discount.
func (li LineItem) WithDiscount(d money.Cents) LineItem {
	out := li
	out.Discount += d
	return out
}

// NewCustomItem builds a person-entered item (tip, delivery fee, extra
// charge). Custom items are non-taxable unless explicitly marked.
func NewCustomItem(name string, quantity int64, total money.Cents, taxable bool) (LineItem, error) {
	if name == "" {
		return LineItem{}, fmt.Errorf("custom item name must not be empty")
	}
	if quantity < 1 {
		return LineItem{}, fmt.Errorf("custom item quantity must be at least 1, got %d", quantity)
	}
	if total < 0 {
		return LineItem{}, fmt.Errorf("custom item total must not be negative, got %s", total)
	}
	// ExtendedPrice is authoritative for custom items; the unit price is
	// informational and truncates when the total does not divide evenly.
	unit := total / money.Cents(quantity)
	return LineItem{
		Name:          name,
		Quantity:      quantity,
		UnitPrice:     unit,
		ExtendedPrice: total,
		Taxable:       taxable,
		Custom:        true,
	}, nil
}
