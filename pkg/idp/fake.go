package idp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-memory Client for tests. It honors the same idempotency
// rules as the real provider.
type Fake struct {
	mu    sync.Mutex
	users map[string]*User
	roles map[string]map[string]bool // user ID -> role name set

	// FailAdd and FailRemove, when set, make the corresponding mirror
	// call return the error instead of applying.
	FailAdd    error
	FailRemove error

	AddCalls    int
	RemoveCalls int
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		users: make(map[string]*User),
		roles: make(map[string]map[string]bool),
	}
}

// Seed registers a user directly, returning its ID.
func (f *Fake) Seed(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "auth0|" + uuid.NewString()
	f.users[id] = &User{ID: id, Email: email}
	f.roles[id] = make(map[string]bool)
	return id
}

func (f *Fake) GetUser(_ context.Context, userID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	cp := *u
	return &cp, nil
}

func (f *Fake) ListUsers(context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *Fake) CreateUser(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return nil, fmt.Errorf("%w: %s", ErrConflict, email)
		}
	}
	id := "auth0|" + uuid.NewString()
	f.users[id] = &User{ID: id, Email: email}
	f.roles[id] = make(map[string]bool)
	cp := *f.users[id]
	return &cp, nil
}

func (f *Fake) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	delete(f.roles, userID)
	return nil
}

func (f *Fake) AddRoleName(_ context.Context, userID, roleName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls++
	if f.FailAdd != nil {
		return f.FailAdd
	}
	if _, ok := f.users[userID]; !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	f.roles[userID][roleName] = true
	return nil
}

func (f *Fake) RemoveRoleName(_ context.Context, userID, roleName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemoveCalls++
	if f.FailRemove != nil {
		return f.FailRemove
	}
	if _, ok := f.users[userID]; !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	delete(f.roles[userID], roleName)
	return nil
}

func (f *Fake) ListRoleNames(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	names := make([]string, 0, len(f.roles[userID]))
	for n := range f.roles[userID] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fake) Ping(context.Context) error { return nil }
