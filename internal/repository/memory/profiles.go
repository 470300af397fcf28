package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

// ProfileStore is an in-memory user directory.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
	now      func() time.Time
}

// NewProfileStore returns an empty directory.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.UserProfile), now: time.Now}
}

// Put stores the profile, keeping the original creation time on overwrite.
func (s *ProfileStore) Put(_ context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = s.now().UTC()
	}
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *ProfileStore) Get(_ context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}
