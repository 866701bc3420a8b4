package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyRevoked  = errors.New("api key has been revoked")
	ErrKeyInvalid  = errors.New("api key is invalid")
)

const (
	keyPrefix       = "pidrel_"
	keyRandomLength = 32 // bytes of random data
)

// APIKey is the stored metadata of an issued key. The key string itself is
// only returned once, at creation; the store keeps a bcrypt hash.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Hash      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// APIKeyStore issues and validates API keys in memory
type APIKeyStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex
}

// NewAPIKeyStore creates an empty key store
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{
		keys: make(map[string]*APIKey),
	}
}

// Create issues a new key for the given name and role. The returned string
// is the only time the plaintext key is available.
func (s *APIKeyStore) Create(name, role string) (string, *APIKey, error) {
	if name == "" {
		return "", nil, fmt.Errorf("%w: empty name", ErrKeyInvalid)
	}
	if !validRoles[role] {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	randomBytes := make([]byte, keyRandomLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	keyString := keyPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)

	// bcrypt caps input at 72 bytes; the generated keys stay under that
	hash, err := bcrypt.GenerateFromPassword([]byte(keyString), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash key: %w", err)
	}

	key := &APIKey{
		ID:        generateID(),
		Name:      name,
		Role:      role,
		Hash:      hash,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.keys[key.ID] = key
	s.mu.Unlock()

	return keyString, key, nil
}

// Validate checks a presented key against the stored hashes and returns the
// matching metadata
func (s *APIKeyStore) Validate(keyString string) (*APIKey, error) {
	if keyString == "" {
		return nil, ErrKeyInvalid
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.keys {
		if bcrypt.CompareHashAndPassword(key.Hash, []byte(keyString)) == nil {
			if key.Revoked {
				return nil, ErrKeyRevoked
			}
			return key, nil
		}
	}
	return nil, ErrKeyNotFound
}

// Revoke marks a key as unusable. Revoked keys stay listed for auditability.
func (s *APIKeyStore) Revoke(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	key.Revoked = true
	return nil
}

// List returns the metadata of all issued keys
func (s *APIKeyStore) List() []*APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		cp := *key
		out = append(out, &cp)
	}
	return out
}

func generateID() string {
	randomBytes := make([]byte, 16)
	rand.Read(randomBytes)
	return base64.RawURLEncoding.EncodeToString(randomBytes)
}
