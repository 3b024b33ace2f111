package qualification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/platform/tx"
)

// Schema is the DDL for the qualified list. The lower(email) index backs the
// case-insensitive uniqueness rule per event.
const Schema = `
CREATE TABLE IF NOT EXISTS qualified_registrants (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL,
	distributor_id TEXT NOT NULL DEFAULT '',
	guest_allowance INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS qualified_registrants_event_email
	ON qualified_registrants (event_id, lower(email));
CREATE INDEX IF NOT EXISTS qualified_registrants_event_distributor
	ON qualified_registrants (event_id, distributor_id)
	WHERE distributor_id <> ''`

// PostgresStore persists the qualified list in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed qualified-list store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const qualifiedColumns = `id, event_id, first_name, last_name, email, distributor_id, guest_allowance, created_at`

func (s *PostgresStore) Create(ctx context.Context, q *QualifiedRegistrant) error {
	query := `
		INSERT INTO qualified_registrants (` + qualifiedColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		q.ID.String(), q.EventID.String(), q.FirstName, q.LastName,
		q.Email, q.DistributorID, q.GuestAllowance, q.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create qualified registrant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, eventID domain.EventID, normalizedEmail string) (*QualifiedRegistrant, error) {
	query := `SELECT ` + qualifiedColumns + ` FROM qualified_registrants
		WHERE event_id = $1 AND lower(email) = $2`
	return scanQualified(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, eventID.String(), normalizedEmail))
}

func (s *PostgresStore) FindByDistributorID(ctx context.Context, eventID domain.EventID, distributorID string) (*QualifiedRegistrant, error) {
	query := `SELECT ` + qualifiedColumns + ` FROM qualified_registrants
		WHERE event_id = $1 AND distributor_id = $2 AND distributor_id <> ''`
	return scanQualified(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, eventID.String(), distributorID))
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID domain.EventID) ([]*QualifiedRegistrant, error) {
	query := `SELECT ` + qualifiedColumns + ` FROM qualified_registrants
		WHERE event_id = $1 ORDER BY created_at, id`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("list qualified registrants: %w", err)
	}
	defer rows.Close()

	var out []*QualifiedRegistrant
	for rows.Next() {
		q, err := scanQualified(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list qualified registrants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RegistrantID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM qualified_registrants WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete qualified registrant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete qualified registrant: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQualified(row rowScanner) (*QualifiedRegistrant, error) {
	var q QualifiedRegistrant
	var id, eventID string
	err := row.Scan(&id, &eventID, &q.FirstName, &q.LastName,
		&q.Email, &q.DistributorID, &q.GuestAllowance, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan qualified registrant: %w", err)
	}
	parsedID, err := domain.ParseRegistrantID(id)
	if err != nil {
		return nil, fmt.Errorf("scan registrant id: %w", err)
	}
	parsedEvent, err := domain.ParseEventID(eventID)
	if err != nil {
		return nil, fmt.Errorf("scan event id: %w", err)
	}
	q.ID = parsedID
	q.EventID = parsedEvent
	return &q, nil
}
