// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) PutRecordType(ctx context.Context, rt *model.RecordType) error {
	return queryPutRecordType(ctx, s.db, rt)
}

func (s *PostgresStore) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return queryGetRecordType(ctx, s.db, name)
}

func (s *PostgresStore) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	return queryListRecordTypes(ctx, s.db)
}

func (s *PostgresStore) PutRecord(ctx context.Context, r *model.Record) error {
	return queryPutRecord(ctx, s.db, r)
}

func (s *PostgresStore) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, recordType, id)
}

func (s *PostgresStore) ListRecords(ctx context.Context, recordType string) ([]*model.Record, error) {
	return queryListRecords(ctx, s.db, recordType)
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, recordType, id string) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.DeleteRecord(ctx, recordType, id)
	})
}

func (s *PostgresStore) CreateSpecification(ctx context.Context, spec *model.Specification) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateSpecification(ctx, spec)
	})
}

func (s *PostgresStore) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return queryGetSpecification(ctx, s.db, id)
}

func (s *PostgresStore) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return queryListSpecifications(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateSpecification(ctx context.Context, spec *model.Specification) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.UpdateSpecification(ctx, spec)
	})
}

func (s *PostgresStore) DeleteSpecification(ctx context.Context, id string) error {
	return queryDeleteSpecification(ctx, s.db, id)
}

func (s *PostgresStore) GetValues(ctx context.Context, specID, refType, refID string) ([]*model.Value, error) {
	return queryGetValues(ctx, s.db, specID, refType, refID)
}

func (s *PostgresStore) ListValues(ctx context.Context, filter model.ValueFilter) ([]*model.Value, error) {
	return queryListValues(ctx, s.db, filter)
}

func (s *PostgresStore) CreateValue(ctx context.Context, v *model.Value) error {
	return mapConstraintError(queryCreateValue(ctx, s.db, v))
}

func (s *PostgresStore) UpdateValue(ctx context.Context, v *model.Value) error {
	return queryUpdateValue(ctx, s.db, v)
}

func (s *PostgresStore) DeleteValue(ctx context.Context, id string) error {
	return queryDeleteValue(ctx, s.db, id)
}

func (s *PostgresStore) ListFreeFormAttributes(ctx context.Context, recordType string) ([]string, error) {
	return queryListFreeFormAttributes(ctx, s.db, recordType)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) PutRecordType(ctx context.Context, rt *model.RecordType) error {
	return queryPutRecordType(ctx, s.tx, rt)
}

func (s *txStore) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return queryGetRecordType(ctx, s.tx, name)
}

func (s *txStore) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	return queryListRecordTypes(ctx, s.tx)
}

func (s *txStore) PutRecord(ctx context.Context, r *model.Record) error {
	return queryPutRecord(ctx, s.tx, r)
}

func (s *txStore) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.tx, recordType, id)
}

func (s *txStore) ListRecords(ctx context.Context, recordType string) ([]*model.Record, error) {
	return queryListRecords(ctx, s.tx, recordType)
}

func (s *txStore) DeleteRecord(ctx context.Context, recordType, id string) error {
	return queryDeleteRecord(ctx, s.tx, recordType, id)
}

func (s *txStore) CreateSpecification(ctx context.Context, spec *model.Specification) error {
	return mapConstraintError(queryCreateSpecification(ctx, s.tx, spec))
}

func (s *txStore) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return queryGetSpecification(ctx, s.tx, id)
}

func (s *txStore) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return queryListSpecifications(ctx, s.tx, filter)
}

func (s *txStore) UpdateSpecification(ctx context.Context, spec *model.Specification) error {
	return mapConstraintError(queryUpdateSpecification(ctx, s.tx, spec))
}

func (s *txStore) DeleteSpecification(ctx context.Context, id string) error {
	return queryDeleteSpecification(ctx, s.tx, id)
}

func (s *txStore) GetValues(ctx context.Context, specID, refType, refID string) ([]*model.Value, error) {
	return queryGetValues(ctx, s.tx, specID, refType, refID)
}

func (s *txStore) ListValues(ctx context.Context, filter model.ValueFilter) ([]*model.Value, error) {
	return queryListValues(ctx, s.tx, filter)
}

func (s *txStore) CreateValue(ctx context.Context, v *model.Value) error {
	return mapConstraintError(queryCreateValue(ctx, s.tx, v))
}

func (s *txStore) UpdateValue(ctx context.Context, v *model.Value) error {
	return queryUpdateValue(ctx, s.tx, v)
}

func (s *txStore) DeleteValue(ctx context.Context, id string) error {
	return queryDeleteValue(ctx, s.tx, id)
}

func (s *txStore) ListFreeFormAttributes(ctx context.Context, recordType string) ([]string, error) {
	return queryListFreeFormAttributes(ctx, s.tx, recordType)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

// PostgreSQL error codes surfaced as constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapConstraintError converts unique and foreign key violations into
// *model.ConstraintViolationError; other errors pass through unchanged.
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pgUniqueViolation:
		return model.Violation("", "unique constraint %s violated", pqErr.Constraint)
	case pgForeignKeyViolation:
		return model.Violation("", "referenced row does not exist (%s)", pqErr.Constraint)
	}
	return err
}
