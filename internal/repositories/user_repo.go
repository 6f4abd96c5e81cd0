package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/google/uuid"
)

// UserRepository is an in-memory credential directory keyed by normalized email
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*models.User)}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[normalizeEmail(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.users[email]; exists {
		return nil, models.ErrConflict
	}

	created := *user
	created.ID = uuid.New().String()
	created.Email = email
	created.CreatedAt = time.Now()
	r.users[email] = &created

	result := created
	return &result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
