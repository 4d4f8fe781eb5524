// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface, so an in-flight session survives a server
// restart. Finished sessions are deleted; nothing is ever queried across
// sessions.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/session"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session with its items, members,
// warnings and anomalies.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session ID must be set")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, order_date, version, subtotal, tax, grand_total,
		    declared_subtotal, declared_tax, declared_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OrderDate, sess.Version,
		int64(sess.Totals.Subtotal), int64(sess.Totals.Tax), int64(sess.Totals.GrandTotal),
		boolToInt(sess.Totals.DeclaredSubtotal), boolToInt(sess.Totals.DeclaredTax),
		boolToInt(sess.Totals.DeclaredTotal), sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for pos, name := range sess.Members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO members (session_id, position, name) VALUES (?, ?, ?)",
			sess.ID, pos, name,
		); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}

	for idx, item := range sess.Items {
		if err := insertItem(ctx, tx, sess.ID, idx, item); err != nil {
			return err
		}
	}

	for idx, people := range sess.Assignment {
		for person, w := range people {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO assignments (session_id, item_idx, person, weight) VALUES (?, ?, ?, ?)",
				sess.ID, idx, person, w.String(),
			); err != nil {
				return fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
	}

	for _, warn := range sess.Warnings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO warnings (session_id, line, item_idx, message) VALUES (?, ?, ?, ?)",
			sess.ID, warn.Line, warn.ItemIndex, warn.Message,
		); err != nil {
			return fmt.Errorf("failed to insert warning: %w", err)
		}
	}

	for _, an := range sess.Anomalies {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO anomalies (session_id, kind, item_idx, detail) VALUES (?, ?, ?, ?)",
			sess.ID, string(an.Kind), an.ItemIndex, an.Detail,
		); err != nil {
			return fmt.Errorf("failed to insert anomaly: %w", err)
		}
	}

	return tx.Commit()
}

// GetSession retrieves a fully materialized session snapshot.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	sess := &session.Session{ID: id, Assignment: models.Assignment{}}

	var declSub, declTax, declTotal int
	var subtotal, tax, grand int64
	err := s.db.QueryRowContext(ctx,
		`SELECT order_date, version, subtotal, tax, grand_total,
		    declared_subtotal, declared_tax, declared_total, created_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.OrderDate, &sess.Version, &subtotal, &tax, &grand,
		&declSub, &declTax, &declTotal, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	sess.Totals = models.ReceiptTotals{
		Subtotal:         money.Cents(subtotal),
		Tax:              money.Cents(tax),
		GrandTotal:       money.Cents(grand),
		DeclaredSubtotal: declSub != 0,
		DeclaredTax:      declTax != 0,
		DeclaredTotal:    declTotal != 0,
	}

	if err := s.loadMembers(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadAssignment(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadFindings(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ReplaceAssignment swaps the assignment mapping inside one transaction.
// The version check makes concurrent writers lose cleanly instead of
// interleaving.
func (s *SQLiteStore) ReplaceAssignment(ctx context.Context, id string, a models.Assignment, expectVersion int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET version = version + 1 WHERE id = ? AND version = ?",
		id, expectVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, "SELECT version FROM sessions WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to query version: %w", err)
		}
		return 0, fmt.Errorf("%w: have version %d, got %d", session.ErrVersionConflict, current, expectVersion)
	}

	var itemCount int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE session_id = ?", id,
	).Scan(&itemCount); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	if err := session.ValidateAssignment(a, itemCount); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE session_id = ?", id); err != nil {
		return 0, fmt.Errorf("failed to clear assignments: %w", err)
	}
	for idx, people := range a {
		for person, w := range people {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO assignments (session_id, item_idx, person, weight) VALUES (?, ?, ?, ?)",
				id, idx, person, w.String(),
			); err != nil {
				return 0, fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return expectVersion + 1, nil
}

// AddItem appends a custom item with the next free index.
func (s *SQLiteStore) AddItem(ctx context.Context, id string, item models.LineItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE sessions SET version = version + 1 WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("failed to bump version: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to check update: %w", err)
	} else if n == 0 {
		return 0, storage.ErrNotFound
	}

	var idx int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE session_id = ?", id,
	).Scan(&idx); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}

	if err := insertItem(ctx, tx, id, idx, item); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return idx, nil
}

// DeleteSession removes the session and all dependent rows.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, sessionID string, idx int, item models.LineItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO items (session_id, idx, name, quantity, unit_price, extended_price,
		    discount, taxable, weight_based, custom, corrected, price_unparsed, source_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, idx, item.Name, item.Quantity,
		int64(item.UnitPrice), int64(item.ExtendedPrice), int64(item.Discount),
		boolToInt(item.Taxable), boolToInt(item.WeightBased), boolToInt(item.Custom),
		boolToInt(item.Corrected), boolToInt(item.PriceUnparsed), item.SourceLine,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM members WHERE session_id = ? ORDER BY position", sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		sess.Members = append(sess.Members, name)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadItems(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, quantity, unit_price, extended_price, discount,
		    taxable, weight_based, custom, corrected, price_unparsed, source_line
		 FROM items WHERE session_id = ? ORDER BY idx`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.LineItem
		var unit, ext, disc int64
		var taxable, weight, custom, corrected, unparsed int
		if err := rows.Scan(&item.Name, &item.Quantity, &unit, &ext, &disc,
			&taxable, &weight, &custom, &corrected, &unparsed, &item.SourceLine); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.UnitPrice = money.Cents(unit)
		item.ExtendedPrice = money.Cents(ext)
		item.Discount = money.Cents(disc)
		item.Taxable = taxable != 0
		item.WeightBased = weight != 0
		item.Custom = custom != 0
		item.Corrected = corrected != 0
		item.PriceUnparsed = unparsed != 0
		sess.Items = append(sess.Items, item)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadAssignment(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_idx, person, weight FROM assignments WHERE session_id = ?", sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var person, weight string
		if err := rows.Scan(&idx, &person, &weight); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		w, err := decimal.NewFromString(weight)
		if err != nil {
			return fmt.Errorf("corrupt assignment weight %q: %w", weight, err)
		}
		if sess.Assignment[idx] == nil {
			sess.Assignment[idx] = make(map[string]decimal.Decimal)
		}
		sess.Assignment[idx][person] = w
	}
	return rows.Err()
}

func (s *SQLiteStore) loadFindings(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT line, item_idx, message FROM warnings WHERE session_id = ?", sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var w models.ParseWarning
		if err := rows.Scan(&w.Line, &w.ItemIndex, &w.Message); err != nil {
			return fmt.Errorf("failed to scan warning: %w", err)
		}
		sess.Warnings = append(sess.Warnings, w)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	arows, err := s.db.QueryContext(ctx,
		"SELECT kind, item_idx, detail FROM anomalies WHERE session_id = ?", sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a models.Anomaly
		var kind string
		if err := arows.Scan(&kind, &a.ItemIndex, &a.Detail); err != nil {
			return fmt.Errorf("failed to scan anomaly: %w", err)
		}
		a.Kind = models.AnomalyKind(kind)
		sess.Anomalies = append(sess.Anomalies, a)
	}
	return arows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
