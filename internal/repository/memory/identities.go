// Package memory provides in-process implementations of the repository
// contracts. They back the default development mode and the package tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

// IdentityStore keeps credentials keyed by ID and lower-cased email.
type IdentityStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Credential
	byEmail map[string]string
}

// NewIdentityStore returns an empty store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		byID:    make(map[string]domain.Credential),
		byEmail: make(map[string]string),
	}
}

func (s *IdentityStore) Create(_ context.Context, cred *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(cred.Email)
	if _, exists := s.byEmail[key]; exists {
		return repository.ErrDuplicate
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	s.byID[cred.ID] = *cred
	s.byEmail[key] = cred.ID
	return nil
}

func (s *IdentityStore) GetByID(_ context.Context, id string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cred, nil
}

func (s *IdentityStore) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cred := s.byID[id]
	return &cred, nil
}
