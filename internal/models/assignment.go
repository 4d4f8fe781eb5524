package models

import "github.com/shopspring/decimal"

// Assignment maps an item's stable index to the people splitting it and
// their weights. A missing weight entry never occurs; an equal split is
// expressed by giving every assignee the same weight (conventionally 1).
//
// The session owns the one mutable Assignment; everything handed to the
// allocation engine is a Clone.
type Assignment map[int]map[string]decimal.Decimal

// EqualWeight is the conventional weight for an unweighted assignee.
var EqualWeight = decimal.NewFromInt(1)

// Clone returns a deep copy of the assignment.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	out := make(Assignment, len(a))
	for idx, people := range a {
		m := make(map[string]decimal.Decimal, len(people))
		for person, w := range people {
			m[person] = w
		}
		out[idx] = m
	}
	return out
}

// Assign records an equal-weight assignment of one item to the given
// people, replacing any previous entry for that item.
func (a Assignment) Assign(itemIndex int, people ...string) {
	m := make(map[string]decimal.Decimal, len(people))
	for _, p := range people {
		m[p] = EqualWeight
	}
	a[itemIndex] = m
}

// People returns the set of all person IDs referenced anywhere in the
// assignment.
func (a Assignment) People() map[string]struct{} {
	out := make(map[string]struct{})
	for _, people := range a {
		for p := range people {
			out[p] = struct{}{}
		}
	}
	return out
}
