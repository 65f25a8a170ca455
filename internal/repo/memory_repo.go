package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriqo/server/internal/model"
)

// memoryRepo is an in-memory UserRepo with the same uniqueness
// semantics as the PostgreSQL implementation. Used by tests and for
// running the server without a database.
type memoryRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
}

// NewMemoryRepo creates an in-memory UserRepo.
func NewMemoryRepo() UserRepo {
	return &memoryRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *memoryRepo) findLocked(match func(model.User) bool) (model.User, bool) {
	for _, u := range r.users {
		if match(u) {
			return u, true
		}
	}
	return model.User{}, false
}

func (r *memoryRepo) FindByPhone(ctx context.Context, phone string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.findLocked(func(u model.User) bool { return u.Phone == phone }); ok {
		return u, nil
	}
	return model.User{}, ErrNotFound
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.findLocked(func(u model.User) bool { return u.Email != nil && *u.Email == email }); ok {
		return u, nil
	}
	return model.User{}, ErrNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return model.User{}, ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, data CreateUser) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.findLocked(func(u model.User) bool { return u.Phone == data.Phone }); taken {
		return uuid.Nil, &ConflictError{Field: "phone"}
	}
	if data.Email != nil {
		if _, taken := r.findLocked(func(u model.User) bool { return u.Email != nil && *u.Email == *data.Email }); taken {
			return uuid.Nil, &ConflictError{Field: "email"}
		}
	}

	now := time.Now()
	hash := data.OTPHash
	expires := data.OTPExpiresAt
	u := model.User{
		ID:           uuid.New(),
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		Phone:        data.Phone,
		Email:        data.Email,
		Password:     data.Password,
		OTPHash:      &hash,
		OTPExpiresAt: &expires,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *memoryRepo) Update(ctx context.Context, id uuid.UUID, data UserUpdate) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}

	if data.Email != nil {
		if _, taken := r.findLocked(func(o model.User) bool {
			return o.ID != id && o.Email != nil && *o.Email == *data.Email
		}); taken {
			return model.User{}, &ConflictError{Field: "email"}
		}
		u.Email = data.Email
	}
	if data.Password != nil {
		u.Password = *data.Password
	}
	if data.OTPHash != nil {
		u.OTPHash = data.OTPHash
	}
	if data.OTPExpiresAt != nil {
		u.OTPExpiresAt = data.OTPExpiresAt
	}
	if data.IsPhoneVerified != nil {
		u.IsPhoneVerified = *data.IsPhoneVerified
	}
	if data.AccountStatus != nil {
		u.AccountStatus = data.AccountStatus
	}
	if data.FirstName != nil {
		u.FirstName = *data.FirstName
	}
	if data.LastName != nil {
		u.LastName = *data.LastName
	}
	if data.Country != nil {
		u.Country = data.Country
	}
	if data.DocType != nil {
		u.DocType = data.DocType
	}
	if data.DocNumber != nil {
		u.DocNumber = data.DocNumber
	}
	if data.DocPath != nil {
		u.DocPath = data.DocPath
	}
	if data.ProfilePath != nil {
		u.ProfilePath = data.ProfilePath
	}
	if data.Gender != nil {
		u.Gender = data.Gender
	}
	if data.MaritalStatus != nil {
		u.MaritalStatus = data.MaritalStatus
	}
	if data.DateOfBirth != nil {
		u.DateOfBirth = data.DateOfBirth
	}

	u.UpdatedAt = time.Now()
	r.users[id] = u
	return u, nil
}

func (r *memoryRepo) ListByStatus(ctx context.Context, status model.AccountStatus) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.User
	for _, u := range r.users {
		if u.AccountStatus != nil && *u.AccountStatus == status {
			out = append(out, u)
		}
	}
	return out, nil
}
