// Package render produces the plain-text summary handed to the export
// layer: a date header, one block per person with their items, and the
// grand total.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
)

// Summary renders an allocation result as downloadable text. People are
// listed in member order first, then any assignees outside the member
// list in name order.
func Summary(orderDate string, members []string, res *models.AllocationResult) string {
	var b strings.Builder

	if orderDate != "" {
		fmt.Fprintf(&b, "%s:\n\n", orderDate)
	}

	for _, person := range personOrder(members, res) {
		sum, ok := res.Summaries[person]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", person, sum.Total.Dollars())
		for _, item := range sum.Items {
			fmt.Fprintf(&b, "%sx %s - %s\n", item.Weight.String(), item.Name, item.Share.Dollars())
		}
		if sum.TaxShare != 0 {
			fmt.Fprintf(&b, "tax - %s\n", sum.TaxShare.Dollars())
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Grand Total = %s\n", res.GrandTotal.Dollars())
	return b.String()
}

func personOrder(members []string, res *models.AllocationResult) []string {
	seen := make(map[string]bool, len(members))
	order := make([]string, 0, len(res.Summaries))
	for _, m := range members {
		if _, ok := res.Summaries[m]; ok && !seen[m] {
			order = append(order, m)
			seen[m] = true
		}
	}
	var rest []string
	for p := range res.Summaries {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
