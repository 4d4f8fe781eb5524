package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// lineKind is the classification of one receipt line.
type lineKind int

const (
	kindNoise lineKind = iota
	kindItem
	kindDiscount
	kindSubtotal
	kindTax
	kindTotal
)

func (k lineKind) String() string {
	switch k {
	case kindItem:
		return "ITEM"
	case kindDiscount:
		return "DISCOUNT"
	case kindSubtotal:
		return "SUBTOTAL"
	case kindTax:
		return "TAX"
	case kindTotal:
		return "TOTAL"
	default:
		return "NOISE"
	}
}

// classified is the structured result of classifying one line.
type classified struct {
	kind lineKind

	name      string
	quantity  int64
	unitPrice money.Cents
	extended  money.Cents
	taxable   bool
	weight    bool

	// priceOnly marks an item line carrying a price but no description,
	// a continuation of a wrapped description on the previous line.
	priceOnly bool

	// malformed marks a line with a price marker whose token did not
	// parse; name is set, prices are zero.
	malformed bool

	// amount is the footer amount for SUBTOTAL/TAX/TOTAL and the
	// (positive) magnitude for DISCOUNT lines.
	amount money.Cents
}

// Walmart-style receipts end item lines with a tax status letter:
// T and X are taxable, N and O are not.
const taxFlags = `([TXNO])?`

var (
	reSubtotal = regexp.MustCompile(`(?i)^sub\s*total\s+\$?(-?\d+\.\d{2})$`)
	reTax      = regexp.MustCompile(`(?i)^(?:sales\s+)?tax(?:\s+\d+(?:\.\d+)?\s*%)?\s+\$?(\d+\.\d{2})$`)
	reTotal    = regexp.MustCompile(`(?i)^(?:grand\s+)?total\s*=?\s+\$?(\d+\.\d{2})$`)

	// Footer keyword present but the amount did not parse; reported as a
	// warning so the user knows the totals are incomplete.
	reSubtotalKw = regexp.MustCompile(`(?i)^sub\s*total\b`)
	reTaxKw      = regexp.MustCompile(`(?i)^(?:sales\s+)?tax\b`)
	reTotalKw    = regexp.MustCompile(`(?i)^(?:grand\s+)?total\b`)

	// Trailing payment/meta lines that must never become items.
	reNoiseKw = regexp.MustCompile(`(?i)^(?:visa|mastercard|amex|discover|debit|credit|cash|change|tend(?:er)?|payment|card|auth|ref|approval|account|balance|items\s+sold|tc#|st#|op#|te#|tr#|thank|survey|www\.|low\s+prices)\b`)

	// "SAVINGS 0.50-", "COUPON -0.50": a discount against the preceding
	// item, by keyword or by a trailing negative price.
	reDiscountKw  = regexp.MustCompile(`(?i)^(.*?(?:discount|coupon|savings|rollback|promo|voucher|markdown).*?)\s+-?\$?(\d+\.\d{2})-?$`)
	reDiscountNeg = regexp.MustCompile(`^(.+?)\s+(?:-\$?(\d+\.\d{2})|\$?(\d+\.\d{2})-)$`)

	// "GREAT VALUE MILK Qty 2 $7.00 T" — the Walmart.com order format.
	reQtyItem = regexp.MustCompile(`(?i)^(.+?)\s+qty\s+(\d+)\s+\$?(\d+\.\d{2})\s*` + taxFlags + `$`)

	// "BANANAS 2.43 lb @ $0.58/lb 1.41 N" — weight-based pricing; the
	// extended price is authoritative.
	reWeightItem = regexp.MustCompile(`(?i)^(.*?)\s*(\d+(?:\.\d+)?)\s*(lb|kg|oz)\s*@\s*\$?(\d+\.\d{2})(?:\s*/\s*(?:lb|kg|oz))?\s+\$?(\d+\.\d{2})\s*` + taxFlags + `$`)

	// "BREAD 2 @ 1.99 3.98 N" — quantity at unit price, extended price.
	reAtItem = regexp.MustCompile(`^(.*?)\s*(\d+)\s*@\s*\$?(\d+\.\d{2})\s+\$?(\d+\.\d{2})\s*` + taxFlags + `$`)

	// "MILK 3.50 T" — plain description with a trailing price.
	rePlainItem = regexp.MustCompile(`^(.+?)\s+\$?(\d+\.\d{2})\s*` + taxFlags + `$`)

	// "3.50 T" — a price with no description, continuing the previous
	// line's wrapped description.
	rePriceOnly = regexp.MustCompile(`^\$?(\d+\.\d{2})\s*` + taxFlags + `$`)

	// "MILK $3.5O" — a price marker followed by a token that is not a
	// price. The item is still emitted, zero-priced, with a warning.
	reMalformed = regexp.MustCompile(`^(.+?)\s+\$(\S+)$`)

	reOrderDate = regexp.MustCompile(`([A-Z][a-z]{2,8} \d{1,2}, \d{4})\s+order`)
)

// classify assigns one trimmed line to a kind. Matchers run in priority
// order: footer lines, payment noise, discounts, then item shapes from
// most to least specific, so "TOTAL 7.78" can never be read as an item
// named "TOTAL".
func classify(line string) classified {
	if line == "" {
		return classified{kind: kindNoise}
	}

	if m := reSubtotal.FindStringSubmatch(line); m != nil {
		return footer(kindSubtotal, m[1])
	}
	if m := reTax.FindStringSubmatch(line); m != nil {
		return footer(kindTax, m[1])
	}
	if m := reTotal.FindStringSubmatch(line); m != nil {
		return footer(kindTotal, m[1])
	}
	if reSubtotalKw.MatchString(line) {
		return classified{kind: kindSubtotal, malformed: true, name: line}
	}
	if reTaxKw.MatchString(line) {
		return classified{kind: kindTax, malformed: true, name: line}
	}
	if reTotalKw.MatchString(line) {
		return classified{kind: kindTotal, malformed: true, name: line}
	}

	if reNoiseKw.MatchString(line) {
		return classified{kind: kindNoise}
	}

	if m := reDiscountKw.FindStringSubmatch(line); m != nil {
		amt, err := money.Parse(m[2])
		if err != nil || amt <= 0 {
			return classified{kind: kindDiscount, malformed: true, name: m[1]}
		}
		return classified{kind: kindDiscount, name: m[1], amount: amt}
	}
	if m := reDiscountNeg.FindStringSubmatch(line); m != nil {
		tok := m[2]
		if tok == "" {
			tok = m[3]
		}
		amt, err := money.Parse(tok)
		if err != nil || amt <= 0 {
			return classified{kind: kindDiscount, malformed: true, name: m[1]}
		}
		return classified{kind: kindDiscount, name: m[1], amount: amt}
	}

	if m := reQtyItem.FindStringSubmatch(line); m != nil {
		qty, _ := strconv.ParseInt(m[2], 10, 64)
		if qty < 1 {
			qty = 1
		}
		ext := money.MustParse(m[3])
		c := classified{
			kind:     kindItem,
			name:     m[1],
			quantity: qty,
			extended: ext,
			taxable:  taxableFlag(m[4]),
		}
		// Unit price derives from the extended price only when it divides
		// evenly; otherwise it stays zero and the extended price stands
		// alone.
		if ext%money.Cents(qty) == 0 {
			c.unitPrice = ext / money.Cents(qty)
		}
		return c
	}

	if m := reWeightItem.FindStringSubmatch(line); m != nil && m[1] != "" {
		return classified{
			kind:      kindItem,
			name:      m[1],
			quantity:  1,
			unitPrice: money.MustParse(m[4]),
			extended:  money.MustParse(m[5]),
			taxable:   taxableFlag(m[6]),
			weight:    true,
		}
	}

	if m := reAtItem.FindStringSubmatch(line); m != nil && m[1] != "" {
		qty, _ := strconv.ParseInt(m[2], 10, 64)
		if qty < 1 {
			qty = 1
		}
		return classified{
			kind:      kindItem,
			name:      m[1],
			quantity:  qty,
			unitPrice: money.MustParse(m[3]),
			extended:  money.MustParse(m[4]),
			taxable:   taxableFlag(m[5]),
		}
	}

	if m := rePriceOnly.FindStringSubmatch(line); m != nil {
		return classified{
			kind:      kindItem,
			quantity:  1,
			unitPrice: money.MustParse(m[1]),
			extended:  money.MustParse(m[1]),
			taxable:   taxableFlag(m[2]),
			priceOnly: true,
		}
	}

	if m := rePlainItem.FindStringSubmatch(line); m != nil {
		price := money.MustParse(m[2])
		return classified{
			kind:      kindItem,
			name:      m[1],
			quantity:  1,
			unitPrice: price,
			extended:  price,
			taxable:   taxableFlag(m[3]),
		}
	}

	if m := reMalformed.FindStringSubmatch(line); m != nil {
		return classified{kind: kindItem, name: m[1], quantity: 1, malformed: true}
	}

	return classified{kind: kindNoise}
}

func footer(kind lineKind, token string) classified {
	amt, err := money.Parse(token)
	if err != nil {
		return classified{kind: kind, malformed: true}
	}
	return classified{kind: kind, amount: amt}
}

func taxableFlag(flag string) bool {
	switch strings.ToUpper(flag) {
	case "T", "X":
		return true
	default:
		return false
	}
}
