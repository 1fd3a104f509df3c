// Package memory provides in-process repositories. They back the service
// when no MongoDB URI is configured and are used throughout the tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
)

var (
	_ repository.UserRepository           = (*UserRepository)(nil)
	_ repository.ClassTemplateRepository  = (*ClassTemplateRepository)(nil)
	_ repository.BookingRepository        = (*BookingRepository)(nil)
	_ repository.SchedulerStateRepository = (*SchedulerStateRepository)(nil)
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			u.PasswordHash = ""
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ClassTemplateRepository is an in-memory repository.ClassTemplateRepository.
type ClassTemplateRepository struct {
	mu        sync.RWMutex
	templates map[primitive.ObjectID]domain.ClassTemplate
}

func NewClassTemplateRepository() *ClassTemplateRepository {
	return &ClassTemplateRepository{templates: make(map[primitive.ObjectID]domain.ClassTemplate)}
}

func (r *ClassTemplateRepository) Create(_ context.Context, tpl *domain.ClassTemplate) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tpl.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	r.templates[tpl.ID] = *tpl
	return tpl.ID, nil
}

func (r *ClassTemplateRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ClassTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tpl, nil
}

func (r *ClassTemplateRepository) List(ctx context.Context) ([]domain.ClassTemplate, error) {
	return r.filter(func(domain.ClassTemplate) bool { return true }), nil
}

func (r *ClassTemplateRepository) ListByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.ClassTemplate, error) {
	return r.filter(func(t domain.ClassTemplate) bool { return t.TrainerID == trainerID }), nil
}

func (r *ClassTemplateRepository) filter(keep func(domain.ClassTemplate) bool) []domain.ClassTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ClassTemplate
	for _, t := range r.templates {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r *ClassTemplateRepository) Update(_ context.Context, tpl *domain.ClassTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.templates[tpl.ID]
	if !ok || existing.TrainerID != tpl.TrainerID {
		return repository.ErrNotFound
	}
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now().UTC()
	r.templates[tpl.ID] = *tpl
	return nil
}

func (r *ClassTemplateRepository) Delete(_ context.Context, id, trainerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.templates[id]
	if !ok || existing.TrainerID != trainerID {
		return repository.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

// SchedulerStateRepository is an in-memory repository.SchedulerStateRepository.
type SchedulerStateRepository struct {
	mu   sync.Mutex
	runs map[string]string
}

func NewSchedulerStateRepository() *SchedulerStateRepository {
	return &SchedulerStateRepository{runs: make(map[string]string)}
}

func (r *SchedulerStateRepository) GetLastRun(_ context.Context, job string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[job], nil
}

func (r *SchedulerStateRepository) SetLastRun(_ context.Context, job, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[job] = date
	return nil
}
