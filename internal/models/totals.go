package models

import "github.com/AmjadKudsi/walmart-bill-splitter/internal/money"

// ReceiptTotals holds the amounts parsed from the receipt footer. They
// are reconciliation inputs only: allocation math always derives its
// totals bottom-up from the item list.
type ReceiptTotals struct {
	// Subtotal is the pre-tax amount. When the receipt carries no
	// subtotal line it is derived as the sum of net extended prices and
	// DeclaredSubtotal is false.
	Subtotal money.Cents

	// Tax is the total tax amount from the footer.
	Tax money.Cents

	// GrandTotal is the declared receipt total.
	GrandTotal money.Cents

	// DeclaredSubtotal, DeclaredTax, DeclaredTotal report which footer
	// lines were actually present on the receipt.
	DeclaredSubtotal bool
	DeclaredTax      bool
	DeclaredTotal    bool
}
