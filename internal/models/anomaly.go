package models

import "fmt"

// AnomalyKind names a reconciliation check that failed.
type AnomalyKind string

const (
	// QuantityMismatch: quantity * unitPrice diverges from extendedPrice
	// by more than one cent on an item with no discount or weight pricing.
	QuantityMismatch AnomalyKind = "QUANTITY_MISMATCH"

	// SubtotalMismatch: the sum of net extended prices diverges from the
	// declared subtotal by more than one cent.
	SubtotalMismatch AnomalyKind = "SUBTOTAL_MISMATCH"

	// TotalMismatch: subtotal + tax diverges from the declared grand
	// total by more than one cent.
	TotalMismatch AnomalyKind = "TOTAL_MISMATCH"
)

// Anomaly is one reconciliation finding. Anomalies are informational:
// allocation proceeds, but they must be surfaced so a total that does not
// match the receipt is never presented silently as authoritative.
type Anomaly struct {
	Kind AnomalyKind `json:"kind"`

	// ItemIndex is the affected item's index, or -1 for receipt-level
	// anomalies.
	ItemIndex int `json:"itemIndex"`

	// Detail is a human-readable description with the amounts involved.
	Detail string `json:"detail"`
}

func (a Anomaly) String() string {
	if a.ItemIndex >= 0 {
		return fmt.Sprintf("%s item %d: %s", a.Kind, a.ItemIndex, a.Detail)
	}
	return fmt.Sprintf("%s: %s", a.Kind, a.Detail)
}

// ParseWarning is a recoverable problem found while parsing one receipt
// line. The affected item is still emitted (with a best-effort price) so
// the user can correct it manually.
type ParseWarning struct {
	// Line is the 1-based receipt line number.
	Line int `json:"line"`

	// ItemIndex is the emitted item's index, or -1 when the warning did
	// not produce an item.
	ItemIndex int `json:"itemIndex"`

	Message string `json:"message"`
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}
