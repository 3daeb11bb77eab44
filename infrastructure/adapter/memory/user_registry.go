package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
)

// UserRegistryAdapter is the in-memory client registry. It is loaded once at
// startup and only read afterwards.
type UserRegistryAdapter struct {
	mu    sync.RWMutex
	users map[string]entity.User
}

func NewUserRegistryAdapter(users ...*entity.User) (*UserRegistryAdapter, error) {
	r := &UserRegistryAdapter{users: make(map[string]entity.User, len(users))}
	for _, u := range users {
		if err := r.add(u); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewSeedRegistry returns the default demo registry.
func NewSeedRegistry() *UserRegistryAdapter {
	r, err := NewUserRegistryAdapter(SeedUsers()...)
	if err != nil {
		panic(err)
	}
	return r
}

// SeedUsers is the built-in registry used when no backing store is configured.
func SeedUsers() []*entity.User {
	return []*entity.User{
		{ID: "alice", TrustLevel: entity.TrustLevelBasic},
		{ID: "bob", TrustLevel: entity.TrustLevelStandard},
		{ID: "treasury", TrustLevel: entity.TrustLevelStandard},
		{ID: "ceo", TrustLevel: entity.TrustLevelHigh, Credential: "omega-7"},
	}
}

func (r *UserRegistryAdapter) add(u *entity.User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}
	checked, err := entity.NewUser(u.ID, u.TrustLevel, u.Credential)
	if err != nil {
		return fmt.Errorf("user %q: %w", u.ID, err)
	}
	if _, exists := r.users[checked.ID]; exists {
		return fmt.Errorf("user %q: %w", checked.ID, outbound.ErrUserAlreadyExists)
	}
	r.users[checked.ID] = *checked
	return nil
}

func (r *UserRegistryAdapter) FindByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, outbound.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRegistryAdapter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// LoadFrom replaces the registry contents with everything src returns. On
// error the previous contents are kept.
func (r *UserRegistryAdapter) LoadFrom(ctx context.Context, src outbound.UserSource) (int, error) {
	users, err := src.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load users: %w", err)
	}
	next, err := NewUserRegistryAdapter(users...)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.users = next.users
	r.mu.Unlock()
	return len(next.users), nil
}
