package storage

import (
	"context"
	"sort"
	"sync"

	"concha-api/internal/models"
)

// MemoryRepository is an in-process UserRepository used by tests and the
// memory storage driver. It mirrors the Postgres behaviour, including the
// unique email constraint.
type MemoryRepository struct {
	mu     sync.RWMutex
	users  map[int64]models.UserInfo
	nextID int64
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[int64]models.UserInfo), nextID: 1}
}

func (m *MemoryRepository) emailTakenLocked(email string, excludeID int64) bool {
	for id, existing := range m.users {
		if id != excludeID && existing.Email == email {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) Create(_ context.Context, info models.UserInfo) (models.UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTakenLocked(info.Email, 0) {
		return models.UserInfo{}, ErrDuplicateEmail
	}
	info.ID = m.nextID
	m.nextID++
	info.ImageHostedLink = nil
	m.users[info.ID] = info
	return info, nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (models.UserInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.users[id]
	if !ok {
		return models.UserInfo{}, ErrUserNotFound
	}
	return info, nil
}

func (m *MemoryRepository) Search(_ context.Context, filter UserFilter) ([]models.UserInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]models.UserInfo, 0)
	for _, info := range m.users {
		if filter.matches(info) {
			results = append(results, info)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (m *MemoryRepository) Update(_ context.Context, id int64, info models.UserInfo) (models.UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[id]
	if !ok {
		return models.UserInfo{}, ErrUserNotFound
	}
	if m.emailTakenLocked(info.Email, id) {
		return models.UserInfo{}, ErrDuplicateEmail
	}
	current.Name = info.Name
	current.Email = info.Email
	current.Address = info.Address
	m.users[id] = current
	return current, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryRepository) SetImageHostedLink(_ context.Context, id int64, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	current.ImageHostedLink = &link
	m.users[id] = current
	return nil
}

func (m *MemoryRepository) Close(context.Context) error { return nil }

// Count reports the number of stored records; tests use it to assert that
// failed writes left the table untouched.
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
