// Package session holds the interactive state of one receipt-splitting
// session: the immutable item list, the member list, and the one mutable
// assignment mapping.
//
// The assignment carries a version that increments on every write.
// Readers always work on a Snapshot, so an allocation run can never
// observe a half-updated assignment; writers pass the version they read
// and lose with ErrVersionConflict if someone else wrote first.
package session

import (
	"errors"
	"fmt"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/calculator"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
)

var (
	// ErrVersionConflict is returned when a write carries a stale version.
	ErrVersionConflict = errors.New("assignment was modified by another writer")
)

// Session is the aggregate for one receipt being split. Items are
// append-only; the assignment is replaced wholesale under a version
// check. The struct itself is not goroutine-safe — stores serialize
// access and hand out snapshots.
type Session struct {
	ID        string
	OrderDate string
	Members   []string

	// Items is the combined list of parsed and custom items. The slice
	// index is the item's stable identity used by assignments.
	Items []models.LineItem

	// Assignment is the current item -> people mapping.
	Assignment models.Assignment

	// Version increments on every assignment replacement and item
	// addition.
	Version int64

	Totals    models.ReceiptTotals
	Warnings  []models.ParseWarning
	Anomalies []models.Anomaly
	CreatedAt int64
}

// Snapshot returns a deep copy the caller may read without holding any
// lock.
func (s *Session) Snapshot() *Session {
	out := &Session{
		ID:        s.ID,
		OrderDate: s.OrderDate,
		Version:   s.Version,
		Totals:    s.Totals,
		CreatedAt: s.CreatedAt,
	}
	out.Members = append(out.Members, s.Members...)
	out.Items = append(out.Items, s.Items...)
	out.Warnings = append(out.Warnings, s.Warnings...)
	out.Anomalies = append(out.Anomalies, s.Anomalies...)
	out.Assignment = s.Assignment.Clone()
	return out
}

// ReplaceAssignment swaps in a new assignment mapping if expectVersion
// matches the current version. Item indices must be in range and weights
// positive; coverage of every item is only enforced when allocation runs.
func (s *Session) ReplaceAssignment(a models.Assignment, expectVersion int64) error {
	if expectVersion != s.Version {
		return fmt.Errorf("%w: have version %d, got %d", ErrVersionConflict, s.Version, expectVersion)
	}
	if err := ValidateAssignment(a, len(s.Items)); err != nil {
		return err
	}
	s.Assignment = a.Clone()
	s.Version++
	return nil
}

// ValidateAssignment checks that every entry references a known item and
// carries a positive weight. Every store runs it before persisting an
// assignment write, so all backends reject bad writes the same way.
func ValidateAssignment(a models.Assignment, itemCount int) error {
	for idx, people := range a {
		if idx < 0 || idx >= itemCount {
			return fmt.Errorf("assignment references unknown item index %d", idx)
		}
		for person, w := range people {
			if w.Sign() <= 0 {
				return fmt.Errorf("assignment weight %s for %q on item %d must be positive", w, person, idx)
			}
		}
	}
	return nil
}

// AddItem appends a custom item and returns its stable index. The new
// item is unassigned until the next assignment write covers it.
func (s *Session) AddItem(item models.LineItem) int {
	s.Items = append(s.Items, item)
	s.Version++
	return len(s.Items) - 1
}

// Allocate runs the allocation engine over this session's items and
// assignment. Call it on a Snapshot.
func (s *Session) Allocate() (*models.AllocationResult, error) {
	return calculator.Allocate(s.Items, s.Assignment, s.Totals.Tax)
}
