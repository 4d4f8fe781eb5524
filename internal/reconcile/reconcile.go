// Package reconcile validates parsed line items against the arithmetic
// invariants of a receipt.
//
// Mismatches never block progress and never discard an item: receipt
// text extraction is inherently lossy, so every finding is surfaced as
// an anomaly for manual review instead.
package reconcile

import (
	"fmt"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// tolerance is one minor unit; differences beyond it are anomalies.
const tolerance = money.Cents(1)

// Report is the reconciliation output: the item sequence (with corrected
// instances substituted) and the anomalies found.
type Report struct {
	Items     []models.LineItem
	Anomalies []models.Anomaly
}

// Ok reports whether every check passed.
func (r Report) Ok() bool { return len(r.Anomalies) == 0 }

// Check validates items against the receipt's arithmetic invariants and
// attempts best-effort corrections. The input slice is never mutated;
// corrections produce new instances with the Corrected flag set.
func Check(items []models.LineItem, totals models.ReceiptTotals) Report {
	out := Report{Items: make([]models.LineItem, len(items))}
	copy(out.Items, items)

	for i, item := range out.Items {
		// Discounted and weight-priced items legitimately diverge from
		// quantity * unit price, and a zero unit price means there is
		// nothing to cross-check against.
		if item.WeightBased || item.Discount != 0 || item.UnitPrice == 0 {
			continue
		}
		expected := money.Cents(item.Quantity) * item.UnitPrice
		diff := (expected - item.ExtendedPrice).Abs()
		if diff <= tolerance {
			continue
		}
		if item.ExtendedPrice == 0 {
			// The extended price is missing outright; re-derive it from
			// quantity and unit price.
			out.Items[i] = item.WithExtendedPrice(expected)
			out.Anomalies = append(out.Anomalies, models.Anomaly{
				Kind:      models.QuantityMismatch,
				ItemIndex: i,
				Detail: fmt.Sprintf("%q: extended price missing, re-derived %d x %s = %s",
					item.Name, item.Quantity, item.UnitPrice, expected),
			})
			continue
		}
		out.Anomalies = append(out.Anomalies, models.Anomaly{
			Kind:      models.QuantityMismatch,
			ItemIndex: i,
			Detail: fmt.Sprintf("%q: %d x %s = %s, receipt says %s",
				item.Name, item.Quantity, item.UnitPrice, expected, item.ExtendedPrice),
		})
	}

	var sum money.Cents
	for _, item := range out.Items {
		sum += item.NetPrice()
	}

	if totals.DeclaredSubtotal {
		if diff := (sum - totals.Subtotal).Abs(); diff > tolerance {
			out.Anomalies = append(out.Anomalies, models.Anomaly{
				Kind:      models.SubtotalMismatch,
				ItemIndex: -1,
				Detail: fmt.Sprintf("items sum to %s, receipt subtotal is %s",
					sum, totals.Subtotal),
			})
		}
	}

	if totals.DeclaredTotal {
		derived := totals.Subtotal + totals.Tax
		if diff := (derived - totals.GrandTotal).Abs(); diff > tolerance {
			out.Anomalies = append(out.Anomalies, models.Anomaly{
				Kind:      models.TotalMismatch,
				ItemIndex: -1,
				Detail: fmt.Sprintf("subtotal %s + tax %s = %s, receipt total is %s",
					totals.Subtotal, totals.Tax, derived, totals.GrandTotal),
			})
		}
	}

	return out
}
