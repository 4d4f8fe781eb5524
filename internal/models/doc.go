// Package models defines the core domain models for the bill splitter.
//
// # Model Overview
//
//   - LineItem: one structured line from a parsed receipt, or a custom
//     item added by a person (delivery fee, tip). Immutable once built;
//     corrections produce a new instance with the Corrected flag set.
//   - ReceiptTotals: subtotal/tax/grand total parsed from the receipt
//     footer. Used only for reconciliation — allocation always derives
//     totals bottom-up from the items themselves.
//   - Assignment: item index -> {person -> weight}. Owned by the
//     interactive session; the allocation engine only ever sees an
//     immutable snapshot of it.
//   - PersonSummary: one person's calculated share (items + proportional
//     tax). Recomputed in full on every allocation request, never
//     incrementally mutated.
//
// # Design Principles
//
//  1. People are identified by plain name strings; there are no user
//     accounts.
//  2. All money fields are fixed-point cents (internal/money). Binary
//     floating point is never used for currency.
//  3. Items are addressed by their stable index in the session's item
//     list, so assignments survive re-reads of the same session.
package models
