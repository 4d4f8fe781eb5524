// Package parser converts raw receipt text into structured line items.
//
// The input is UTF-8, newline-delimited text already extracted from the
// source document by an external decoder. Each line is classified by a
// prioritized set of structural matchers into ITEM, DISCOUNT, SUBTOTAL,
// TAX, TOTAL or NOISE; discounts attach to the nearest preceding item,
// footer lines populate the receipt totals, and noise is dropped.
package parser

import (
	"fmt"
	"strings"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// EmptyReceiptError signals that no line in the input classified as an
// item. Nothing usable can be shown, so the pipeline aborts.
type EmptyReceiptError struct {
	// Lines is the number of lines scanned.
	Lines int
}

func (e *EmptyReceiptError) Error() string {
	return fmt.Sprintf("no line items found in receipt (%d lines scanned)", e.Lines)
}

// Result is the parser output: ordered items, footer totals, the order
// date when the header carries one, and per-line warnings.
type Result struct {
	Items     []models.LineItem
	Totals    models.ReceiptTotals
	OrderDate string
	Warnings  []models.ParseWarning
}

// Parse converts one receipt's raw text into structured line items.
// Recoverable problems (malformed prices, orphan discounts, unreadable
// footer amounts) become warnings; the only fatal condition is a receipt
// with no items at all.
func Parse(text string) (*Result, error) {
	res := &Result{}

	if m := reOrderDate.FindStringSubmatch(text); m != nil {
		res.OrderDate = m[1]
	}

	lines := strings.Split(text, "\n")

	// pending holds a description line with no price, waiting for a
	// price-only continuation on the next line.
	pending := ""

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		c := classify(line)

		switch c.kind {
		case kindItem:
			if c.priceOnly {
				if pending == "" {
					// A bare price with no description before it is not
					// attributable to anything.
					continue
				}
				c.name = pending
			}
			pending = ""

			if c.malformed {
				res.Warnings = append(res.Warnings, models.ParseWarning{
					Line:      lineNo,
					ItemIndex: len(res.Items),
					Message:   fmt.Sprintf("unreadable price on %q, item emitted with price 0.00", line),
				})
			}
			item := models.LineItem{
				Name:          strings.TrimSpace(c.name),
				Quantity:      c.quantity,
				UnitPrice:     c.unitPrice,
				ExtendedPrice: c.extended,
				Taxable:       c.taxable,
				WeightBased:   c.weight,
				PriceUnparsed: c.malformed,
				SourceLine:    lineNo,
			}
			res.Items = append(res.Items, item)

		case kindDiscount:
			pending = ""
			if c.malformed {
				res.Warnings = append(res.Warnings, models.ParseWarning{
					Line: lineNo, ItemIndex: -1,
					Message: fmt.Sprintf("unreadable discount amount on %q, discount ignored", line),
				})
				continue
			}
			if len(res.Items) == 0 {
				res.Warnings = append(res.Warnings, models.ParseWarning{
					Line: lineNo, ItemIndex: -1,
					Message: fmt.Sprintf("discount %s with no preceding item, ignored", (-c.amount).String()),
				})
				continue
			}
			last := len(res.Items) - 1
			res.Items[last] = res.Items[last].WithDiscount(-c.amount)

		case kindSubtotal:
			pending = ""
			if warn := footerWarning(c, lineNo, "subtotal"); warn != nil {
				res.Warnings = append(res.Warnings, *warn)
				continue
			}
			if !res.Totals.DeclaredSubtotal {
				res.Totals.Subtotal = c.amount
				res.Totals.DeclaredSubtotal = true
			}

		case kindTax:
			pending = ""
			if warn := footerWarning(c, lineNo, "tax"); warn != nil {
				res.Warnings = append(res.Warnings, *warn)
				continue
			}
			if !res.Totals.DeclaredTax {
				res.Totals.Tax = c.amount
				res.Totals.DeclaredTax = true
			}

		case kindTotal:
			pending = ""
			if warn := footerWarning(c, lineNo, "total"); warn != nil {
				res.Warnings = append(res.Warnings, *warn)
				continue
			}
			if !res.Totals.DeclaredTotal {
				res.Totals.GrandTotal = c.amount
				res.Totals.DeclaredTotal = true
			}

		case kindNoise:
			// A line of bare text may be a wrapped item description whose
			// price lands on the next line. Hold it; it is dropped the
			// moment anything other than a price-only line follows.
			if line != "" && looksDescriptive(line) {
				pending = line
			} else {
				pending = ""
			}
		}
	}

	if len(res.Items) == 0 {
		return nil, &EmptyReceiptError{Lines: len(lines)}
	}

	if !res.Totals.DeclaredSubtotal {
		var sum money.Cents
		for _, it := range res.Items {
			sum += it.NetPrice()
		}
		res.Totals.Subtotal = sum
	}

	return res, nil
}

func footerWarning(c classified, lineNo int, what string) *models.ParseWarning {
	if !c.malformed {
		return nil
	}
	return &models.ParseWarning{
		Line: lineNo, ItemIndex: -1,
		Message: fmt.Sprintf("unreadable %s amount, receipt totals incomplete", what),
	}
}

// looksDescriptive reports whether a noise line could plausibly be a
// wrapped item description: it has letters and carries no price-like
// token of its own.
func looksDescriptive(line string) bool {
	hasLetter := false
	for _, r := range line {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			hasLetter = true
			break
		}
	}
	return hasLetter && !strings.ContainsAny(line, "$") && !strings.Contains(line, ".")
}
