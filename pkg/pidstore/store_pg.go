package pidstore

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

// PGStore handles PID persistence using PostgreSQL
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new PostgreSQL-backed PID store
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
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

// migrate creates the pid table if it does not exist
func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pidstore_pid (
			id          UUID PRIMARY KEY,
			pid_type    TEXT NOT NULL,
			pid_value   TEXT NOT NULL,
			status      CHAR(1) NOT NULL,
			redirect_to UUID REFERENCES pidstore_pid(id),
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			CONSTRAINT uq_pidstore_pid_key UNIQUE (pid_type, pid_value)
		)`)
	return err
}

const pidColumns = "id, pid_type, pid_value, status, redirect_to, created_at, updated_at"

func scanPID(row pgx.Row) (*PID, error) {
	var pid PID
	var status string
	err := row.Scan(&pid.ID, &pid.Type, &pid.Value, &status, &pid.RedirectTo, &pid.CreatedAt, &pid.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPIDNotFound
		}
		return nil, err
	}
	pid.Status = Status(status)
	return &pid, nil
}

// Create mints a new PID in status NEW
func (s *PGStore) Create(ctx context.Context, pidType, pidValue string) (*PID, error) {
	if pidType == "" || pidValue == "" {
		return nil, ErrEmptyKey
	}

	now := time.Now().UTC()
	pid := &PID{
		ID:        uuid.New(),
		Type:      pidType,
		Value:     pidValue,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO pidstore_pid (id, pid_type, pid_value, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pid.ID, pid.Type, pid.Value, string(pid.Status), pid.CreatedAt, pid.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s:%s", ErrPIDExists, pidType, pidValue)
		}
		return nil, fmt.Errorf("failed to insert pid: %w", err)
	}

	return pid, nil
}

// Get retrieves a PID by its natural key
func (s *PGStore) Get(ctx context.Context, pidType, pidValue string) (*PID, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE pid_type = $1 AND pid_value = $2",
		pidType, pidValue)
	pid, err := scanPID(row)
	if err != nil {
		if errors.Is(err, ErrPIDNotFound) {
			return nil, fmt.Errorf("%w: %s:%s", ErrPIDNotFound, pidType, pidValue)
		}
		return nil, fmt.Errorf("failed to get pid: %w", err)
	}
	return pid, nil
}

// GetByID retrieves a PID by its internal object id
func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*PID, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE id = $1", id)
	pid, err := scanPID(row)
	if err != nil {
		if errors.Is(err, ErrPIDNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPIDNotFound, id)
		}
		return nil, fmt.Errorf("failed to get pid: %w", err)
	}
	return pid, nil
}

// SetStatus applies a validated status transition inside a transaction
func (s *PGStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*PID, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE id = $1 FOR UPDATE", id)
	pid, err := scanPID(row)
	if err != nil {
		return nil, err
	}
	if !CanTransition(pid.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pid.Status, status)
	}

	pid.Status = status
	if status != StatusRedirected {
		pid.RedirectTo = nil
	}
	pid.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		"UPDATE pidstore_pid SET status = $1, redirect_to = $2, updated_at = $3 WHERE id = $4",
		string(pid.Status), pid.RedirectTo, pid.UpdatedAt, pid.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update pid status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return pid, nil
}

// Redirect points a registered PID at another registered PID
func (s *PGStore) Redirect(ctx context.Context, id, target uuid.UUID) (*PID, error) {
	if id == target {
		return nil, fmt.Errorf("%w: pid cannot redirect to itself", ErrRedirectTarget)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE id = $1 FOR UPDATE", id)
	pid, err := scanPID(row)
	if err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE id = $1", target)
	tgt, err := scanPID(row)
	if err != nil {
		return nil, fmt.Errorf("redirect target: %w", err)
	}

	if tgt.Status != StatusRegistered {
		return nil, fmt.Errorf("%w: target %s is %s, must be REGISTERED", ErrRedirectTarget, tgt.Key(), tgt.Status)
	}
	if pid.Status != StatusRegistered && pid.Status != StatusRedirected {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pid.Status, StatusRedirected)
	}

	pid.Status = StatusRedirected
	pid.RedirectTo = &tgt.ID
	pid.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		"UPDATE pidstore_pid SET status = $1, redirect_to = $2, updated_at = $3 WHERE id = $4",
		string(pid.Status), pid.RedirectTo, pid.UpdatedAt, pid.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update redirect: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return pid, nil
}

// Resolve follows at most one redirect hop and returns the effective PID
func (s *PGStore) Resolve(ctx context.Context, pidType, pidValue string) (*PID, error) {
	pid, err := s.Get(ctx, pidType, pidValue)
	if err != nil {
		return nil, err
	}
	if pid.Status == StatusRedirected && pid.RedirectTo != nil {
		return s.GetByID(ctx, *pid.RedirectTo)
	}
	return pid, nil
}

// List returns all PIDs of a type, ordered by value
func (s *PGStore) List(ctx context.Context, pidType string) ([]*PID, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+pidColumns+" FROM pidstore_pid WHERE pid_type = $1 ORDER BY pid_value", pidType)
	if err != nil {
		return nil, fmt.Errorf("failed to list pids: %w", err)
	}
	defer rows.Close()

	result := make([]*PID, 0)
	for rows.Next() {
		pid, err := scanPID(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pid)
	}
	return result, rows.Err()
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
