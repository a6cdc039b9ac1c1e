package searchsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TableSpec maps one entity type onto a Postgres table.
type TableSpec struct {
	Type EntityType

	// Table and PKColumn name where rows of this type live. Both are
	// sanitized before being interpolated into SQL.
	Table    string
	PKColumn string

	// Columns selected for Scan, in order.
	Columns []string

	// Scan turns one selected row into an entity.
	Scan func(row pgx.Row) (Entity, error)
}

// PostgresStore is an EntityStore over a pgx connection pool. Host
// applications register one TableSpec per indexed entity type.
type PostgresStore struct {
	pool   *pgxpool.Pool
	specs  map[EntityType]TableSpec
	logger Logger
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		specs:  make(map[EntityType]TableSpec),
		logger: &NoOpLogger{},
	}
}

// WithLogger sets the logger.
func (s *PostgresStore) WithLogger(logger Logger) *PostgresStore {
	s.logger = logger
	return s
}

// RegisterTable adds the table mapping for one entity type.
func (s *PostgresStore) RegisterTable(spec TableSpec) error {
	if spec.Table == "" || spec.PKColumn == "" || len(spec.Columns) == 0 || spec.Scan == nil {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"entity_type": spec.Type.TypeKey(),
			"reason":      "table spec requires table, pk column, columns and a scanner",
		})
	}
	if _, exists := s.specs[spec.Type]; exists {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"entity_type": spec.Type.TypeKey(),
			"reason":      "entity type registered twice",
		})
	}
	s.specs[spec.Type] = spec
	return nil
}

func (s *PostgresStore) spec(t EntityType) (TableSpec, error) {
	spec, ok := s.specs[t]
	if !ok {
		return TableSpec{}, WithContext(ErrUnknownEntityType, map[string]interface{}{
			"entity_type": t.TypeKey(),
		})
	}
	return spec, nil
}

// Get loads one entity by primary key. Missing rows wrap ErrNotFound;
// every other failure wraps ErrStoreUnavailable so the consumer treats
// it as transient.
func (s *PostgresStore) Get(ctx context.Context, id Identifier) (Entity, error) {
	spec, err := s.spec(id.Type())
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		cols[i] = pgx.Identifier{col}.Sanitize()
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s::text = $1",
		strings.Join(cols, ", "),
		pgx.Identifier{spec.Table}.Sanitize(),
		pgx.Identifier{spec.PKColumn}.Sanitize(),
	)

	e, err := spec.Scan(s.pool.QueryRow(ctx, query, id.PK))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, WithContext(ErrNotFound, map[string]interface{}{
				"identifier": id.String(),
			})
		}
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"identifier": id.String(),
			"error":      err.Error(),
		})
	}
	return e, nil
}

// ListPKs returns every primary key of the type as text, ordered.
func (s *PostgresStore) ListPKs(ctx context.Context, t EntityType) ([]string, error) {
	spec, err := s.spec(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s::text FROM %s ORDER BY 1",
		pgx.Identifier{spec.PKColumn}.Sanitize(),
		pgx.Identifier{spec.Table}.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"entity_type": t.TypeKey(),
			"error":       err.Error(),
		})
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
				"entity_type": t.TypeKey(),
				"error":       err.Error(),
			})
		}
		pks = append(pks, pk)
	}
	if err := rows.Err(); err != nil {
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"entity_type": t.TypeKey(),
			"error":       err.Error(),
		})
	}
	return pks, nil
}

// Reset closes all pooled connections. The pool reconnects lazily, so
// the next query starts from a fresh connection.
func (s *PostgresStore) Reset() {
	s.pool.Reset()
}
