package models

import (
	"github.com/shopspring/decimal"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// PersonItem is one item's contribution to a person's summary, for the
// per-person breakdown in the exported summary text.
type PersonItem struct {
	// Name is the item description.
	Name string

	// Weight is this person's assignment weight for the item.
	Weight decimal.Decimal

	// Share is this person's rounded share of the item's net price.
	// Breakdown lines are display-only; ItemShare on the summary is the
	// authoritative rounded sum.
	Share money.Cents
}

// PersonSummary is one person's calculated share of the receipt. It is a
// pure function of (items, assignment, tax) and is recomputed in full on
// every allocation request.
type PersonSummary struct {
	// PersonID is the person's identifier (a plain name).
	PersonID string

	// ItemShare is the person's share of net extended prices, rounded to
	// cents, including any residual cent assigned to this person.
	ItemShare money.Cents

	// TaxShare is the person's proportional share of the total tax,
	// rounded to cents.
	TaxShare money.Cents

	// Total is ItemShare + TaxShare after residual distribution.
	Total money.Cents

	// Items lists the items this person was assigned with their shares.
	Items []PersonItem
}

// AllocationResult is the full output of one allocation run.
type AllocationResult struct {
	// Summaries maps person ID to that person's summary.
	Summaries map[string]*PersonSummary

	// GrandTotal is the bottom-up total: sum of net extended prices plus
	// tax. The rounded per-person totals always sum to exactly this.
	GrandTotal money.Cents

	// TaxableBase is the sum of net extended prices of taxable items.
	TaxableBase money.Cents

	// Residual is the cent difference between GrandTotal and the sum of
	// the independently rounded shares, before it was redistributed. At
	// most a few cents, bounded by the number of people.
	Residual money.Cents
}
