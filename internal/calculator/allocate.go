// Package calculator computes each person's share of a receipt.
//
// Shares are carried as exact rationals (math/big.Rat) while the engine
// runs, rounded to whole cents with round-half-to-even at the end, and
// any rounding residual is redistributed with the largest-remainder
// method so the visible per-person totals always sum exactly to the
// receipt grand total.
package calculator

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
)

// UnassignedItemError is returned when an item in the input list has no
// entry in the assignment. Allocation must not run with silently dropped
// items.
type UnassignedItemError struct {
	Index int
	Name  string
}

func (e *UnassignedItemError) Error() string {
	return fmt.Sprintf("item %d (%q) has not been assigned to anyone", e.Index, e.Name)
}

// EmptyAssignmentError is returned when an item is assigned to an empty
// set of people.
type EmptyAssignmentError struct {
	Index int
	Name  string
}

func (e *EmptyAssignmentError) Error() string {
	return fmt.Sprintf("item %d (%q) is assigned to an empty set of people", e.Index, e.Name)
}

// InvalidWeightError is returned when an assignee's weight is zero or
// negative.
type InvalidWeightError struct {
	Index    int
	PersonID string
	Weight   decimal.Decimal
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("item %d: weight %s for %q must be positive", e.Index, e.Weight, e.PersonID)
}

// share accumulates one person's exact (unrounded) amounts.
type share struct {
	items   *big.Rat // cents
	taxable *big.Rat // cents, contribution from taxable items only
	tax     *big.Rat // cents
	lines   []models.PersonItem
}

// Allocate splits every item's net price among its assignees by weight,
// distributes the tax in proportion to each person's consumption of
// taxable goods, and rounds so that the per-person totals sum exactly to
// the bottom-up grand total. It is deterministic and idempotent: the same
// inputs always produce the same output.
func Allocate(items []models.LineItem, assignment models.Assignment, tax money.Cents) (*models.AllocationResult, error) {
	shares := make(map[string]*share)
	personShare := func(id string) *share {
		s, ok := shares[id]
		if !ok {
			s = &share{items: new(big.Rat), taxable: new(big.Rat), tax: new(big.Rat)}
			shares[id] = s
		}
		return s
	}

	var netSum, taxableBase money.Cents

	for i, item := range items {
		people, ok := assignment[i]
		if !ok {
			return nil, &UnassignedItemError{Index: i, Name: item.Name}
		}
		if len(people) == 0 {
			return nil, &EmptyAssignmentError{Index: i, Name: item.Name}
		}

		assignees := make([]string, 0, len(people))
		for p := range people {
			assignees = append(assignees, p)
		}
		sort.Strings(assignees)

		weightSum := new(big.Rat)
		weights := make(map[string]*big.Rat, len(assignees))
		for _, p := range assignees {
			w := people[p]
			if w.Sign() <= 0 {
				return nil, &InvalidWeightError{Index: i, PersonID: p, Weight: w}
			}
			wr, ok := new(big.Rat).SetString(w.String())
			if !ok {
				return nil, &InvalidWeightError{Index: i, PersonID: p, Weight: w}
			}
			weights[p] = wr
			weightSum.Add(weightSum, wr)
		}

		net := item.NetPrice()
		netSum += net
		if item.Taxable {
			taxableBase += net
		}
		netRat := net.Rat()

		for _, p := range assignees {
			// This person's exact slice of the item:
			// net * weight / weightSum.
			slice := new(big.Rat).Mul(netRat, weights[p])
			slice.Quo(slice, weightSum)

			s := personShare(p)
			s.items.Add(s.items, slice)
			if item.Taxable {
				s.taxable.Add(s.taxable, slice)
			}
			s.lines = append(s.lines, models.PersonItem{
				Name:   item.Name,
				Weight: people[p],
				Share:  money.RoundRatHalfEven(slice),
			})
		}
	}

	// Tax is distributed in proportion to each person's consumption of
	// taxable goods, not split evenly. With no taxable items everyone's
	// tax share is zero and the tax amount cannot be attributed at all,
	// so it stays out of the bottom-up grand total.
	grand := netSum
	if taxableBase > 0 && tax != 0 {
		grand += tax
		baseRat := taxableBase.Rat()
		taxRat := tax.Rat()
		for _, s := range shares {
			s.tax.Mul(taxRat, s.taxable)
			s.tax.Quo(s.tax, baseRat)
		}
	}

	persons := make([]string, 0, len(shares))
	for p := range shares {
		persons = append(persons, p)
	}
	sort.Strings(persons)

	result := &models.AllocationResult{
		Summaries:   make(map[string]*models.PersonSummary, len(persons)),
		GrandTotal:  grand,
		TaxableBase: taxableBase,
	}

	var roundedSum money.Cents
	for _, p := range persons {
		s := shares[p]
		result.Summaries[p] = &models.PersonSummary{
			PersonID:  p,
			ItemShare: money.RoundRatHalfEven(s.items),
			TaxShare:  money.RoundRatHalfEven(s.tax),
			Items:     s.lines,
		}
		roundedSum += result.Summaries[p].ItemShare + result.Summaries[p].TaxShare
	}

	result.Residual = grand - roundedSum
	distributeResidual(result, shares, persons)

	for _, p := range persons {
		sum := result.Summaries[p]
		sum.Total = sum.ItemShare + sum.TaxShare
	}

	return result, nil
}

// distributeResidual assigns leftover cents to the people with the
// largest fractional remainder of their exact total (smallest first when
// taking cents away), ties broken by person ID so output is reproducible.
func distributeResidual(result *models.AllocationResult, shares map[string]*share, persons []string) {
	residual := result.Residual
	if residual == 0 || len(persons) == 0 {
		return
	}

	type ranked struct {
		id  string
		rem *big.Rat
	}
	ranking := make([]ranked, 0, len(persons))
	for _, p := range persons {
		exact := new(big.Rat).Add(shares[p].items, shares[p].tax)
		ranking = append(ranking, ranked{id: p, rem: money.FracRemainder(exact)})
	}

	if residual > 0 {
		sort.SliceStable(ranking, func(i, j int) bool {
			if c := ranking[i].rem.Cmp(ranking[j].rem); c != 0 {
				return c > 0
			}
			return ranking[i].id < ranking[j].id
		})
	} else {
		sort.SliceStable(ranking, func(i, j int) bool {
			if c := ranking[i].rem.Cmp(ranking[j].rem); c != 0 {
				return c < 0
			}
			return ranking[i].id < ranking[j].id
		})
	}

	step := money.Cents(1)
	if residual < 0 {
		step = -1
	}
	for residual != 0 {
		for _, r := range ranking {
			result.Summaries[r.id].ItemShare += step
			residual -= step
			if residual == 0 {
				break
			}
		}
	}
}
