package registration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/platform/tx"
)

// Schema is the DDL for the registrations table. The partial unique index is
// the storage-level reconciliation rule: anonymous rows opt out via
// allow_duplicates, so only verified-mode rows collide.
const Schema = `
CREATE TABLE IF NOT EXISTS registrations (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL,
	distributor_id TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	swag_status TEXT NOT NULL DEFAULT 'none',
	verified_by_directory BOOLEAN NOT NULL DEFAULT FALSE,
	language TEXT NOT NULL DEFAULT '',
	companions INT NOT NULL DEFAULT 0,
	allow_duplicates BOOLEAN NOT NULL DEFAULT FALSE,
	registered_at TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL,
	checked_in_at TIMESTAMPTZ,
	badge_printed_at TIMESTAMPTZ,
	extra JSONB NOT NULL DEFAULT '{}'
);
CREATE UNIQUE INDEX IF NOT EXISTS registrations_event_email
	ON registrations (event_id, lower(email)) WHERE NOT allow_duplicates;
CREATE INDEX IF NOT EXISTS registrations_event
	ON registrations (event_id)`

// PostgresStore persists registrations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const registrationColumns = `id, event_id, first_name, last_name, email, distributor_id, phone,
	status, swag_status, verified_by_directory, language, companions, allow_duplicates,
	registered_at, last_modified, checked_in_at, badge_printed_at, extra`

// Upsert reconciles in a single statement. On conflict the existing row keeps
// its id, registered_at, check-in state, and badge history; everything the
// submission carries overwrites. xmax is nonzero exactly when the row was
// updated rather than inserted, which makes was_updated authoritative without
// a second query.
func (s *PostgresStore) Upsert(ctx context.Context, r *Registration) (*Registration, bool, error) {
	extra, err := json.Marshal(r.Extra)
	if err != nil {
		return nil, false, fmt.Errorf("marshal registration extra: %w", err)
	}

	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (event_id, lower(email)) WHERE NOT allow_duplicates DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			distributor_id = EXCLUDED.distributor_id,
			phone = EXCLUDED.phone,
			status = CASE WHEN registrations.status = 'checked_in'
				THEN registrations.status ELSE EXCLUDED.status END,
			verified_by_directory = EXCLUDED.verified_by_directory,
			language = EXCLUDED.language,
			companions = EXCLUDED.companions,
			last_modified = EXCLUDED.last_modified,
			extra = EXCLUDED.extra
		RETURNING ` + registrationColumns + `, (xmax <> 0) AS was_updated
	`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query,
		r.ID.String(), r.EventID.String(), r.FirstName, r.LastName, r.Email,
		r.DistributorID, r.Phone, r.Status.String(), string(r.SwagStatus),
		r.VerifiedByDirectory, r.Language, r.Companions, r.AllowDuplicates,
		r.RegisteredAt, r.LastModified, r.CheckedInAt, r.BadgePrintedAt, extra,
	)

	out, wasUpdated, err := scanRegistrationWithFlag(row)
	if err != nil {
		return nil, false, fmt.Errorf("upsert registration: %w", err)
	}
	return out, wasUpdated, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *Registration) error {
	extra, err := json.Marshal(r.Extra)
	if err != nil {
		return fmt.Errorf("marshal registration extra: %w", err)
	}

	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		r.ID.String(), r.EventID.String(), r.FirstName, r.LastName, r.Email,
		r.DistributorID, r.Phone, r.Status.String(), string(r.SwagStatus),
		r.VerifiedByDirectory, r.Language, r.Companions, r.AllowDuplicates,
		r.RegisteredAt, r.LastModified, r.CheckedInAt, r.BadgePrintedAt, extra,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RegistrationID) (*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return scanRegistration(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String()))
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, eventID domain.EventID, normalizedEmail, distributorID string) (*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 AND NOT allow_duplicates
		  AND (($2 <> '' AND lower(email) = $2) OR ($3 <> '' AND distributor_id = $3))
		ORDER BY last_modified DESC
		LIMIT 1`
	return scanRegistration(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query,
		eventID.String(), normalizedEmail, distributorID))
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID domain.EventID) ([]*Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 ORDER BY registered_at, id`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return out, nil
}

// Execute loads the row FOR UPDATE, applies validate and mutate, and writes
// it back in the same transaction. Unique violations on the write surface as
// ErrConflict so transfers into an occupied slot fail cleanly.
func (s *PostgresStore) Execute(ctx context.Context, id domain.RegistrationID, validate func(*Registration) error, mutate func(*Registration)) (*Registration, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration tx: %w", err)
	}
	defer func() { _ = txn.Rollback() }()

	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	r, err := scanRegistration(txn.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}

	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)

	extra, err := json.Marshal(r.Extra)
	if err != nil {
		return nil, fmt.Errorf("marshal registration extra: %w", err)
	}

	update := `
		UPDATE registrations SET
			event_id = $2, first_name = $3, last_name = $4, email = $5,
			distributor_id = $6, phone = $7, status = $8, swag_status = $9,
			verified_by_directory = $10, language = $11, companions = $12,
			allow_duplicates = $13, last_modified = $14, checked_in_at = $15,
			badge_printed_at = $16, extra = $17
		WHERE id = $1
	`
	if _, err := txn.ExecContext(ctx, update,
		r.ID.String(), r.EventID.String(), r.FirstName, r.LastName, r.Email,
		r.DistributorID, r.Phone, r.Status.String(), string(r.SwagStatus),
		r.VerifiedByDirectory, r.Language, r.Companions, r.AllowDuplicates,
		r.LastModified, r.CheckedInAt, r.BadgePrintedAt, extra,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration tx: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RegistrationID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM registrations WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*Registration, error) {
	r, _, err := scanInto(row, false)
	return r, err
}

func scanRegistrationWithFlag(row rowScanner) (*Registration, bool, error) {
	return scanInto(row, true)
}

func scanInto(row rowScanner, withFlag bool) (*Registration, bool, error) {
	var r Registration
	var id, eventID, status, swag string
	var extra []byte
	var wasUpdated bool

	dest := []any{&id, &eventID, &r.FirstName, &r.LastName, &r.Email,
		&r.DistributorID, &r.Phone, &status, &swag, &r.VerifiedByDirectory,
		&r.Language, &r.Companions, &r.AllowDuplicates, &r.RegisteredAt,
		&r.LastModified, &r.CheckedInAt, &r.BadgePrintedAt, &extra}
	if withFlag {
		dest = append(dest, &wasUpdated)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, sentinel.ErrNotFound
		}
		return nil, false, fmt.Errorf("scan registration: %w", err)
	}

	parsedID, err := domain.ParseRegistrationID(id)
	if err != nil {
		return nil, false, fmt.Errorf("scan registration id: %w", err)
	}
	parsedEvent, err := domain.ParseEventID(eventID)
	if err != nil {
		return nil, false, fmt.Errorf("scan event id: %w", err)
	}
	r.ID = parsedID
	r.EventID = parsedEvent
	r.Status = domain.RegistrationStatus(status)
	r.SwagStatus = domain.SwagStatus(swag)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &r.Extra); err != nil {
			return nil, false, fmt.Errorf("decode registration extra: %w", err)
		}
	}
	return &r, wasUpdated, nil
}
