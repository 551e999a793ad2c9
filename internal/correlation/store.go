// Package correlation persists the short-lived primary-transaction records
// that let a follow-up message complete an earlier transaction's fee.
package correlation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrNotFound     = errors.New("correlation record not found")
)

// SQLiteStore implements service.CorrelationStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the correlation database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Store persists one correlation record. A missing ID gets a fresh ULID;
// a missing CreatedAt gets the current instant.
func (s *SQLiteStore) Store(ctx context.Context, rec *model.CorrelationRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	var amountMinor sql.NullInt64
	if rec.Amount != nil {
		amountMinor = sql.NullInt64{Int64: model.MinorUnits(*rec.Amount), Valid: true}
	}
	var direction sql.NullString
	if rec.Direction != nil {
		direction = sql.NullString{String: string(*rec.Direction), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correlations (
			id, sender, body, received_at, amount_minor, direction,
			ending_hint, transaction_id, account_id, idempotency_key,
			is_primary, matched_id, fee_applied, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Sender,
		rec.Body,
		rec.ReceivedAt.UTC(),
		amountMinor,
		direction,
		rec.EndingHint,
		rec.TransactionID,
		rec.AccountID,
		rec.Key,
		rec.IsPrimary,
		rec.MatchedID,
		rec.FeeApplied,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store correlation record: %w", err)
	}
	return nil
}

// FindMatch scans for the most recent primary record from the same sender
// with no fee applied yet, received within the sliding window. When an amount
// is supplied an exact-amount match is preferred over mere recency.
func (s *SQLiteStore) FindMatch(ctx context.Context, sender string, amount *decimal.Decimal, window time.Duration) (*model.CorrelationRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sender, "sender"); err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().Add(-window)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, body, received_at, amount_minor, direction,
		       ending_hint, transaction_id, account_id, idempotency_key,
		       is_primary, matched_id, fee_applied, created_at
		FROM correlations
		WHERE sender = ? COLLATE NOCASE
		  AND is_primary = 1
		  AND fee_applied = 0
		  AND received_at >= ?
		ORDER BY received_at DESC
	`, sender, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []model.CorrelationRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		candidates = append(candidates, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correlations: %w", err)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	if amount != nil {
		wantMinor := model.MinorUnits(*amount)
		for i := range candidates {
			if candidates[i].Amount != nil && model.MinorUnits(*candidates[i].Amount) == wantMinor {
				return &candidates[i], nil
			}
		}
	}

	return &candidates[0], nil
}

// MarkFeeApplied flips a record's fee_applied flag.
func (s *SQLiteStore) MarkFeeApplied(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE correlations SET fee_applied = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark fee applied: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// LinkCorrelation records which primary a follow-up was matched against.
func (s *SQLiteStore) LinkCorrelation(ctx context.Context, followUpID, primaryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(followUpID, "followUpID"); err != nil {
		return err
	}
	if err := validateString(primaryID, "primaryID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE correlations SET matched_id = ? WHERE id = ?`, primaryID, followUpID)
	if err != nil {
		return fmt.Errorf("failed to link correlation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, followUpID)
	}
	return nil
}

// SweepOlderThan deletes records whose receipt is older than the retention
// window, regardless of correlation state. Lost correlations only mean a
// transfer fee never gets attached, which is an accepted degradation.
func (s *SQLiteStore) SweepOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-retention)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM correlations WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep correlations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept rows: %w", err)
	}
	return deleted, nil
}

func scanRecord(rows *sql.Rows) (*model.CorrelationRecord, error) {
	var (
		rec         model.CorrelationRecord
		amountMinor sql.NullInt64
		direction   sql.NullString
	)
	err := rows.Scan(
		&rec.ID,
		&rec.Sender,
		&rec.Body,
		&rec.ReceivedAt,
		&amountMinor,
		&direction,
		&rec.EndingHint,
		&rec.TransactionID,
		&rec.AccountID,
		&rec.Key,
		&rec.IsPrimary,
		&rec.MatchedID,
		&rec.FeeApplied,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan correlation record: %w", err)
	}
	if amountMinor.Valid {
		amount := decimal.New(amountMinor.Int64, -2)
		rec.Amount = &amount
	}
	if direction.Valid {
		rec.Direction = model.ParseDirection(direction.String)
	}
	return &rec, nil
}

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRecord(rec *model.CorrelationRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.Sender == "" {
		return fmt.Errorf("%w: sender", ErrEmptyString)
	}
	if rec.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: received_at", ErrNilParameter)
	}
	return nil
}
