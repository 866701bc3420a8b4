package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore handles relation persistence using PostgreSQL
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new PostgreSQL-backed relation store
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// NewPGStoreWithPool wraps an existing pool. The caller owns the pool's
// lifecycle; Close becomes a no-op.
func NewPGStoreWithPool(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// migrate creates the relation table if it does not exist
func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pidrelations_relation (
			parent_id     UUID NOT NULL,
			child_id      UUID NOT NULL,
			relation_type INTEGER NOT NULL,
			idx           INTEGER,
			created_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (parent_id, child_id, relation_type)
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS ix_pidrelations_parent
		ON pidrelations_relation (parent_id, relation_type)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS ix_pidrelations_child
		ON pidrelations_relation (child_id, relation_type)`)
	return err
}

const relationColumns = "parent_id, child_id, relation_type, idx, created_at"

// ordered first by index, unindexed relations trail in creation order
const relationOrder = " ORDER BY idx ASC NULLS LAST, created_at ASC"

func scanRelation(row pgx.Row) (*Relation, error) {
	var rel Relation
	err := row.Scan(&rel.ParentID, &rel.ChildID, &rel.TypeID, &rel.Index, &rel.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRelationNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// CreateRelation inserts a new relation edge
func (s *PGStore) CreateRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int, index *int) (*Relation, error) {
	rel := &Relation{
		ParentID:  parentID,
		ChildID:   childID,
		TypeID:    typeID,
		Index:     index,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO pidrelations_relation (parent_id, child_id, relation_type, idx, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rel.ParentID, rel.ChildID, rel.TypeID, rel.Index, rel.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationExists, parentID, childID, typeID)
		}
		return nil, fmt.Errorf("failed to insert relation: %w", err)
	}

	return rel, nil
}

// DeleteRelation removes a relation edge
func (s *PGStore) DeleteRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pidrelations_relation
		WHERE parent_id = $1 AND child_id = $2 AND relation_type = $3`,
		parentID, childID, typeID)
	if err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
	}
	return nil
}

// GetRelation retrieves a single relation edge
func (s *PGStore) GetRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (*Relation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+relationColumns+` FROM pidrelations_relation
		WHERE parent_id = $1 AND child_id = $2 AND relation_type = $3`,
		parentID, childID, typeID)
	rel, err := scanRelation(row)
	if err != nil {
		if errors.Is(err, ErrRelationNotFound) {
			return nil, fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
		}
		return nil, fmt.Errorf("failed to get relation: %w", err)
	}
	return rel, nil
}

func (s *PGStore) queryRelations(ctx context.Context, query string, args ...any) ([]*Relation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	result := make([]*Relation, 0)
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	return result, rows.Err()
}

// ChildRelations lists the relations from a parent for one type
func (s *PGStore) ChildRelations(ctx context.Context, parentID uuid.UUID, typeID int) ([]*Relation, error) {
	return s.queryRelations(ctx,
		"SELECT "+relationColumns+" FROM pidrelations_relation WHERE parent_id = $1 AND relation_type = $2"+relationOrder,
		parentID, typeID)
}

// ParentRelations lists the relations into a child for one type
func (s *PGStore) ParentRelations(ctx context.Context, childID uuid.UUID, typeID int) ([]*Relation, error) {
	return s.queryRelations(ctx,
		"SELECT "+relationColumns+" FROM pidrelations_relation WHERE child_id = $1 AND relation_type = $2"+relationOrder,
		childID, typeID)
}

// CountChildren counts a parent's children for one type
func (s *PGStore) CountChildren(ctx context.Context, parentID uuid.UUID, typeID int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM pidrelations_relation WHERE parent_id = $1 AND relation_type = $2",
		parentID, typeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}
	return count, nil
}

// CountParents counts a child's parents for one type
func (s *PGStore) CountParents(ctx context.Context, childID uuid.UUID, typeID int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM pidrelations_relation WHERE child_id = $1 AND relation_type = $2",
		childID, typeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parents: %w", err)
	}
	return count, nil
}

// HasRelation reports whether an edge exists
func (s *PGStore) HasRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pidrelations_relation
			WHERE parent_id = $1 AND child_id = $2 AND relation_type = $3
		)`, parentID, childID, typeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check relation: %w", err)
	}
	return exists, nil
}

// SetIndexes bulk-assigns sibling indexes under one parent and type
func (s *PGStore) SetIndexes(ctx context.Context, parentID uuid.UUID, typeID int, indexes map[uuid.UUID]*int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for childID, index := range indexes {
		tag, err := tx.Exec(ctx, `
			UPDATE pidrelations_relation SET idx = $1
			WHERE parent_id = $2 AND child_id = $3 AND relation_type = $4`,
			index, parentID, childID, typeID)
		if err != nil {
			return fmt.Errorf("failed to set index: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AllRelations returns every stored relation (used by offline validation)
func (s *PGStore) AllRelations(ctx context.Context) ([]*Relation, error) {
	return s.queryRelations(ctx,
		"SELECT "+relationColumns+" FROM pidrelations_relation"+relationOrder)
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
