package pidstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence interface for PID records
type Store interface {
	// Create mints a new PID in status NEW
	Create(ctx context.Context, pidType, pidValue string) (*PID, error)
	// Get retrieves a PID by its natural key
	Get(ctx context.Context, pidType, pidValue string) (*PID, error)
	// GetByID retrieves a PID by its internal object id
	GetByID(ctx context.Context, id uuid.UUID) (*PID, error)
	// SetStatus applies a validated status transition
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*PID, error)
	// Redirect points a registered PID at another registered PID
	Redirect(ctx context.Context, id, target uuid.UUID) (*PID, error)
	// Resolve follows at most one redirect hop and returns the effective PID
	Resolve(ctx context.Context, pidType, pidValue string) (*PID, error)
	// List returns all PIDs of a type, ordered by value
	List(ctx context.Context, pidType string) ([]*PID, error)
	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error
	// Close releases store resources
	Close() error
}

// MemoryStore is an in-memory PID store guarded by a RWMutex.
// It is the default backend for tests and single-node deployments.
type MemoryStore struct {
	pids  map[uuid.UUID]*PID
	byKey map[string]uuid.UUID
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory PID store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pids:  make(map[uuid.UUID]*PID),
		byKey: make(map[string]uuid.UUID),
	}
}

// Create mints a new PID in status NEW
func (s *MemoryStore) Create(ctx context.Context, pidType, pidValue string) (*PID, error) {
	if pidType == "" || pidValue == "" {
		return nil, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pidType + ":" + pidValue
	if _, ok := s.byKey[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPIDExists, key)
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

	s.pids[pid.ID] = pid
	s.byKey[key] = pid.ID

	return pid.clone(), nil
}

// Get retrieves a PID by its natural key
func (s *MemoryStore) Get(ctx context.Context, pidType, pidValue string) (*PID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[pidType+":"+pidValue]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrPIDNotFound, pidType, pidValue)
	}
	return s.pids[id].clone(), nil
}

// GetByID retrieves a PID by its internal object id
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*PID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pid, ok := s.pids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPIDNotFound, id)
	}
	return pid.clone(), nil
}

// SetStatus applies a validated status transition
func (s *MemoryStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*PID, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pid, ok := s.pids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPIDNotFound, id)
	}
	if !CanTransition(pid.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pid.Status, status)
	}

	pid.Status = status
	if status != StatusRedirected {
		pid.RedirectTo = nil
	}
	pid.UpdatedAt = time.Now().UTC()

	return pid.clone(), nil
}

// Redirect points a registered PID at another registered PID.
// An already-redirected PID can be retargeted.
func (s *MemoryStore) Redirect(ctx context.Context, id, target uuid.UUID) (*PID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, ok := s.pids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPIDNotFound, id)
	}
	tgt, ok := s.pids[target]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrPIDNotFound, target)
	}

	if id == target {
		return nil, fmt.Errorf("%w: pid cannot redirect to itself", ErrRedirectTarget)
	}
	if tgt.Status != StatusRegistered {
		return nil, fmt.Errorf("%w: target %s is %s, must be REGISTERED", ErrRedirectTarget, tgt.Key(), tgt.Status)
	}
	if pid.Status != StatusRegistered && pid.Status != StatusRedirected {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pid.Status, StatusRedirected)
	}

	pid.Status = StatusRedirected
	t := target
	pid.RedirectTo = &t
	pid.UpdatedAt = time.Now().UTC()

	return pid.clone(), nil
}

// Resolve follows at most one redirect hop and returns the effective PID
func (s *MemoryStore) Resolve(ctx context.Context, pidType, pidValue string) (*PID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[pidType+":"+pidValue]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrPIDNotFound, pidType, pidValue)
	}
	pid := s.pids[id]
	if pid.Status == StatusRedirected && pid.RedirectTo != nil {
		if target, ok := s.pids[*pid.RedirectTo]; ok {
			return target.clone(), nil
		}
		return nil, fmt.Errorf("%w: redirect target of %s", ErrPIDNotFound, pid.Key())
	}
	return pid.clone(), nil
}

// List returns all PIDs of a type, ordered by value
func (s *MemoryStore) List(ctx context.Context, pidType string) ([]*PID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*PID, 0)
	for _, pid := range s.pids {
		if pid.Type == pidType {
			result = append(result, pid.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Value < result[j].Value })

	return result, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
