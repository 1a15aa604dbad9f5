// Package postgres stores registrations in PostgreSQL through a pgx pool.
//
// Each row write runs under its own SAVEPOINT so a failed insert or update
// leaves the surrounding batch transaction usable. Inserts take a SHARE ROW
// EXCLUSIVE lock on registrations so that computing MAX(id)+1 and writing the
// row cannot interleave with another writer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/racereg/internal/config"
	"github.com/JonMunkholm/racereg/internal/core"
	"github.com/JonMunkholm/racereg/internal/logging"
)

const uniqueViolation = "23505"

// Schema is applied by EnsureSchema. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS registrations (
		registration_id    BIGINT PRIMARY KEY,
		first_name         TEXT NOT NULL,
		last_name          TEXT NOT NULL,
		first_key          TEXT NOT NULL,
		last_key           TEXT NOT NULL,
		gender             TEXT NOT NULL,
		dob                DATE NOT NULL,
		club               TEXT NOT NULL DEFAULT '',
		email              TEXT NOT NULL,
		medical_conditions TEXT NOT NULL DEFAULT '',
		emergency_name     TEXT NOT NULL DEFAULT '',
		emergency_contact  TEXT NOT NULL DEFAULT '',
		created            TIMESTAMPTZ NOT NULL,
		last_updated       TIMESTAMPTZ NOT NULL,
		UNIQUE (first_key, last_key, dob)
	)`,
	`CREATE TABLE IF NOT EXISTS race_genders (
		registration_id BIGINT PRIMARY KEY REFERENCES registrations (registration_id),
		race_gender     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS import_batches (
		batch_id    UUID PRIMARY KEY,
		file_name   TEXT NOT NULL,
		inserted    INTEGER NOT NULL,
		updated     INTEGER NOT NULL,
		invalid     INTEGER NOT NULL,
		empty       INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
}

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects using cfg, verifies the connection and ensures the schema.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger := logging.FromContext(ctx)
	if u, err := url.Parse(cfg.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		logger.Info("connected to database")
	}
	return s, nil
}

// New wraps an existing pool. The Store takes ownership of it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Reset removes every registration, race gender and import record.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE race_genders, registrations, import_batches`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close implements core.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RunInTx implements core.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx core.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx) // no-op after commit

	if err := fn(&tx{db: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	db     DBTX
	locked bool
}

// savepoint runs fn so that a failure rolls back only fn's writes.
func (t *tx) savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := t.db.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.db.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback savepoint: %w (after %v)", rbErr, err)
		}
		return err
	}
	if _, err := t.db.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *tx) FindByIdentity(ctx context.Context, id core.Identity) (int64, bool, error) {
	key := id.Key()
	var regID int64
	err := t.db.QueryRow(ctx,
		`SELECT registration_id FROM registrations WHERE first_key = $1 AND last_key = $2 AND dob = $3`,
		key.First, key.Last, toPgDate(key.DOB),
	).Scan(&regID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find registration: %w", err)
	}
	return regID, true, nil
}

func (t *tx) Insert(ctx context.Context, reg core.Registration) (int64, error) {
	if !t.locked {
		if _, err := t.db.Exec(ctx, `LOCK TABLE registrations IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return 0, fmt.Errorf("lock registrations: %w", err)
		}
		t.locked = true
	}

	key := reg.Identity().Key()
	var id int64
	err := t.savepoint(ctx, "reg_insert", func() error {
		return t.db.QueryRow(ctx, `
			INSERT INTO registrations (
				registration_id, first_name, last_name, first_key, last_key, gender, dob,
				club, email, medical_conditions, emergency_name, emergency_contact,
				created, last_updated
			) VALUES (
				(SELECT COALESCE(MAX(registration_id), 0) + 1 FROM registrations),
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
			) RETURNING registration_id`,
			reg.FirstName, reg.LastName, key.First, key.Last, reg.Gender, toPgDate(reg.DOB),
			reg.Club, reg.Email, reg.MedicalConditions, reg.EmergencyName, reg.EmergencyContact,
			reg.Created, reg.LastUpdated,
		).Scan(&id)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %s", core.ErrDuplicateIdentity, reg.Identity())
		}
		return 0, fmt.Errorf("insert registration: %w", err)
	}
	return id, nil
}

func (t *tx) Update(ctx context.Context, reg core.Registration) error {
	key := reg.Identity().Key()
	var affected int64
	err := t.savepoint(ctx, "reg_update", func() error {
		tag, err := t.db.Exec(ctx, `
			UPDATE registrations
			SET gender = $1, club = $2, email = $3, medical_conditions = $4,
				emergency_name = $5, emergency_contact = $6, last_updated = $7
			WHERE first_key = $8 AND last_key = $9 AND dob = $10`,
			reg.Gender, reg.Club, reg.Email, reg.MedicalConditions,
			reg.EmergencyName, reg.EmergencyContact, reg.LastUpdated,
			key.First, key.Last, toPgDate(key.DOB),
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrRegistrationNotFound, reg.Identity())
	}
	return nil
}

const registrationColumns = `r.registration_id, r.first_name, r.last_name, r.gender, r.dob,
	r.club, r.email, r.medical_conditions, r.emergency_name, r.emergency_contact,
	r.created, r.last_updated`

func (t *tx) ListAll(ctx context.Context) ([]core.Registration, error) {
	rows, err := t.db.Query(ctx,
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
	rows, err := t.db.Query(ctx, `
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
		var raceGender pgtype.Text
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
	var exists bool
	if err := t.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE registration_id = $1)`, o.RegistrationID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: id %d", core.ErrRegistrationNotFound, o.RegistrationID)
	}

	if _, err := t.db.Exec(ctx, `
		INSERT INTO race_genders (registration_id, race_gender) VALUES ($1, $2)
		ON CONFLICT (registration_id) DO UPDATE SET race_gender = EXCLUDED.race_gender`,
		o.RegistrationID, o.Gender,
	); err != nil {
		return fmt.Errorf("set race gender: %w", err)
	}
	return nil
}

func (t *tx) RecordBatch(ctx context.Context, b core.ImportBatch) error {
	if _, err := t.db.Exec(ctx, `
		INSERT INTO import_batches (
			batch_id, file_name, inserted, updated, invalid, empty, failed, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pgtype.UUID{Bytes: b.ID, Valid: true}, b.FileName, b.Inserted, b.Updated, b.Invalid,
		b.Empty, b.Failed, b.StartedAt, b.FinishedAt,
	); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

func (t *tx) ListBatches(ctx context.Context, limit int) ([]core.ImportBatch, error) {
	rows, err := t.db.Query(ctx, `
		SELECT batch_id, file_name, inserted, updated, invalid, empty, failed, started_at, finished_at
		FROM import_batches
		ORDER BY started_at DESC
		LIMIT $1`, pgtype.Int8{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []core.ImportBatch
	for rows.Next() {
		var b core.ImportBatch
		var id pgtype.UUID
		if err := rows.Scan(&id, &b.FileName, &b.Inserted, &b.Updated, &b.Invalid,
			&b.Empty, &b.Failed, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.ID = id.Bytes
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanRegistration(row pgx.Row, reg *core.Registration, extra ...any) error {
	var dob pgtype.Date
	dest := []any{
		&reg.ID, &reg.FirstName, &reg.LastName, &reg.Gender, &dob,
		&reg.Club, &reg.Email, &reg.MedicalConditions, &reg.EmergencyName, &reg.EmergencyContact,
		&reg.Created, &reg.LastUpdated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return fmt.Errorf("scan registration: %w", err)
	}
	reg.DOB = fromPgDate(dob)
	return nil
}

func toPgDate(d core.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func fromPgDate(d pgtype.Date) core.Date {
	if !d.Valid {
		return core.Date{}
	}
	return core.DateOf(d.Time.In(time.UTC))
}
