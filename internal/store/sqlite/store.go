// Package sqlite stores registrations in a local SQLite file using the pure
// Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/racereg/internal/core"
	"github.com/JonMunkholm/racereg/internal/logging"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registrations (
		registration_id    INTEGER PRIMARY KEY,
		first_name         TEXT NOT NULL,
		last_name          TEXT NOT NULL,
		first_key          TEXT NOT NULL,
		last_key           TEXT NOT NULL,
		gender             TEXT NOT NULL,
		dob                TEXT NOT NULL,
		club               TEXT NOT NULL DEFAULT '',
		email              TEXT NOT NULL,
		medical_conditions TEXT NOT NULL DEFAULT '',
		emergency_name     TEXT NOT NULL DEFAULT '',
		emergency_contact  TEXT NOT NULL DEFAULT '',
		created            TEXT NOT NULL,
		last_updated       TEXT NOT NULL,
		UNIQUE (first_key, last_key, dob)
	)`,
	`CREATE TABLE IF NOT EXISTS race_genders (
		registration_id INTEGER PRIMARY KEY REFERENCES registrations (registration_id),
		race_gender     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS import_batches (
		batch_id    TEXT PRIMARY KEY,
		file_name   TEXT NOT NULL,
		inserted    INTEGER NOT NULL,
		updated     INTEGER NOT NULL,
		invalid     INTEGER NOT NULL,
		empty       INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
}

// Store is a core.Store backed by one SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and makes sure the schema
// exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; a second connection would only wait on the file lock.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logging.FromContext(ctx).Debug("sqlite store opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Reset removes every registration, race gender and import record.
func (s *Store) Reset(ctx context.Context) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"race_genders", "registrations", "import_batches"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return sqlTx.Commit()
}

// Close implements core.Store.
func (s *Store) Close() error { return s.db.Close() }

// RunInTx implements core.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx core.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() // no-op after commit

	if err := fn(&tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) FindByIdentity(ctx context.Context, id core.Identity) (int64, bool, error) {
	key := id.Key()
	var regID int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT registration_id FROM registrations WHERE first_key = ? AND last_key = ? AND dob = ?`,
		key.First, key.Last, key.DOB.String(),
	).Scan(&regID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find registration: %w", err)
	}
	return regID, true, nil
}

func (t *tx) Insert(ctx context.Context, reg core.Registration) (int64, error) {
	key := reg.Identity().Key()
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO registrations (
			registration_id, first_name, last_name, first_key, last_key, gender, dob,
			club, email, medical_conditions, emergency_name, emergency_contact,
			created, last_updated
		) VALUES (
			(SELECT IFNULL(MAX(registration_id), 0) + 1 FROM registrations),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		) RETURNING registration_id`,
		reg.FirstName, reg.LastName, key.First, key.Last, reg.Gender, reg.DOB.String(),
		reg.Club, reg.Email, reg.MedicalConditions, reg.EmergencyName, reg.EmergencyContact,
		formatTime(reg.Created), formatTime(reg.LastUpdated),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", core.ErrDuplicateIdentity, reg.Identity())
		}
		return 0, fmt.Errorf("insert registration: %w", err)
	}
	return id, nil
}

func (t *tx) Update(ctx context.Context, reg core.Registration) error {
	key := reg.Identity().Key()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE registrations
		SET gender = ?, club = ?, email = ?, medical_conditions = ?,
			emergency_name = ?, emergency_contact = ?, last_updated = ?
		WHERE first_key = ? AND last_key = ? AND dob = ?`,
		reg.Gender, reg.Club, reg.Email, reg.MedicalConditions,
		reg.EmergencyName, reg.EmergencyContact, formatTime(reg.LastUpdated),
		key.First, key.Last, key.DOB.String(),
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrRegistrationNotFound, reg.Identity())
	}
	return nil
}

const registrationColumns = `r.registration_id, r.first_name, r.last_name, r.gender, r.dob,
	r.club, r.email, r.medical_conditions, r.emergency_name, r.emergency_contact,
	r.created, r.last_updated`

func (t *tx) ListAll(ctx context.Context) ([]core.Registration, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations r ORDER BY r.registration_id`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []core.Registration
	for rows.Next() {
		var reg core.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (t *tx) JoinOverrides(ctx context.Context) ([]core.RegistrationWithOverride, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+registrationColumns+`, g.race_gender
		FROM registrations r
		LEFT JOIN race_genders g ON g.registration_id = r.registration_id
		ORDER BY r.registration_id`)
	if err != nil {
		return nil, fmt.Errorf("join race genders: %w", err)
	}
	defer rows.Close()

	var out []core.RegistrationWithOverride
	for rows.Next() {
		var r core.RegistrationWithOverride
		var raceGender sql.NullString
		if err := scanRegistration(rows, &r.Registration, &raceGender); err != nil {
			return nil, err
		}
		if raceGender.Valid {
			r.Override = &core.RaceGenderOverride{RegistrationID: r.ID, Gender: raceGender.String}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *tx) SetOverride(ctx context.Context, o core.RaceGenderOverride) error {
	var exists int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE registration_id = ?`, o.RegistrationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", core.ErrRegistrationNotFound, o.RegistrationID)
	}
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO race_genders (registration_id, race_gender) VALUES (?, ?)
		ON CONFLICT (registration_id) DO UPDATE SET race_gender = excluded.race_gender`,
		o.RegistrationID, o.Gender,
	); err != nil {
		return fmt.Errorf("set race gender: %w", err)
	}
	return nil
}

func (t *tx) RecordBatch(ctx context.Context, b core.ImportBatch) error {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO import_batches (
			batch_id, file_name, inserted, updated, invalid, empty, failed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.FileName, b.Inserted, b.Updated, b.Invalid, b.Empty, b.Failed,
		formatTime(b.StartedAt), formatTime(b.FinishedAt),
	); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

func (t *tx) ListBatches(ctx context.Context, limit int) ([]core.ImportBatch, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT batch_id, file_name, inserted, updated, invalid, empty, failed, started_at, finished_at
		FROM import_batches
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []core.ImportBatch
	for rows.Next() {
		var b core.ImportBatch
		var id, started, finished string
		if err := rows.Scan(&id, &b.FileName, &b.Inserted, &b.Updated, &b.Invalid,
			&b.Empty, &b.Failed, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("batch id %q: %w", id, err)
		}
		if b.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if b.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner, reg *core.Registration, extra ...any) error {
	var dob, created, updated string
	dest := []any{
		&reg.ID, &reg.FirstName, &reg.LastName, &reg.Gender, &dob,
		&reg.Club, &reg.Email, &reg.MedicalConditions, &reg.EmergencyName, &reg.EmergencyContact,
		&created, &updated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return fmt.Errorf("scan registration: %w", err)
	}

	var err error
	if reg.DOB, err = core.ParseISODate(dob); err != nil {
		return fmt.Errorf("registration %d: %w", reg.ID, err)
	}
	if reg.Created, err = parseTime(created); err != nil {
		return fmt.Errorf("registration %d: %w", reg.ID, err)
	}
	if reg.LastUpdated, err = parseTime(updated); err != nil {
		return fmt.Errorf("registration %d: %w", reg.ID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
