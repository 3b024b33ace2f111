package event

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

// Schema is the DDL for the events table. Integration suites apply it;
// production applies it via migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	mode TEXT NOT NULL,
	requires_qualification BOOLEAN NOT NULL,
	registration_closed_at TIMESTAMPTZ,
	qualification_start TIMESTAMPTZ,
	qualification_end TIMESTAMPTZ,
	capacity INT NOT NULL DEFAULT 0,
	required_fields TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists events in PostgreSQL. Pure I/O; transition rules
// live on the model.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, name, mode, requires_qualification, registration_closed_at,
	qualification_start, qualification_end, capacity, required_fields, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		e.ID.String(), e.Name, e.Mode.String(), e.RequiresQualification,
		e.RegistrationClosedAt, e.QualificationStart, e.QualificationEnd,
		e.Capacity, pq.Array(e.RequiredFields), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.EventID) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String()))
}

func (s *PostgresStore) Execute(ctx context.Context, id domain.EventID, validate func(*Event) error, mutate func(*Event)) (*Event, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin event tx: %w", err)
	}
	defer func() { _ = txn.Rollback() }()

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	e, err := scanEvent(txn.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}

	if err := validate(e); err != nil {
		return nil, err
	}
	mutate(e)

	update := `
		UPDATE events SET
			name = $2, mode = $3, requires_qualification = $4,
			registration_closed_at = $5, qualification_start = $6, qualification_end = $7,
			capacity = $8, required_fields = $9, updated_at = $10
		WHERE id = $1
	`
	if _, err := txn.ExecContext(ctx, update,
		e.ID.String(), e.Name, e.Mode.String(), e.RequiresQualification,
		e.RegistrationClosedAt, e.QualificationStart, e.QualificationEnd,
		e.Capacity, pq.Array(e.RequiredFields), e.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("commit event tx: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var id string
	var mode string
	var fields pq.StringArray
	err := row.Scan(&id, &e.Name, &mode, &e.RequiresQualification,
		&e.RegistrationClosedAt, &e.QualificationStart, &e.QualificationEnd,
		&e.Capacity, &fields, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	parsed, err := domain.ParseEventID(id)
	if err != nil {
		return nil, fmt.Errorf("scan event id: %w", err)
	}
	e.ID = parsed
	e.Mode = domain.RegistrationMode(mode)
	e.RequiredFields = []string(fields)
	return &e, nil
}
