package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
	"github.com/volunteerhub/volunteer-hub-api/internal/repository"
)

type fakeUserRepository struct {
	usersByEmail map[string]domain.User
	nextID       uint
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{
		usersByEmail: map[string]domain.User{},
		nextID:       1,
	}
}

func (r *fakeUserRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	if _, exists := r.usersByEmail[user.Email]; exists {
		return domain.User{}, repository.ErrUserEmailExists
	}

	user.ID = r.nextID
	r.nextID++
	r.usersByEmail[user.Email] = user

	return user, nil
}

func (r *fakeUserRepository) FindByEmail(_ context.Context, email string) (domain.User, error) {
	user, exists := r.usersByEmail[email]
	if !exists {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func TestAuthService_Signup(t *testing.T) {
	repo := newFakeUserRepository()
	svc := NewAuthService(repo)

	created, err := svc.Signup(context.Background(), domain.User{
		Email:    "dana@example.com",
		Password: "passw0rd1",
		Name:     "Dana",
		Role:     domain.RoleOrganizer,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	// The stored password is a hash, not the plaintext.
	stored := repo.usersByEmail["dana@example.com"]
	assert.NotEqual(t, "passw0rd1", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("passw0rd1")))

	_, err = svc.Signup(context.Background(), domain.User{
		Email:    "dana@example.com",
		Password: "passw0rd1",
	})
	assert.ErrorIs(t, err, ErrUserEmailExists)
}

func TestAuthService_Login(t *testing.T) {
	repo := newFakeUserRepository()
	svc := NewAuthService(repo)

	_, err := svc.Signup(context.Background(), domain.User{
		Email:    "dana@example.com",
		Password: "passw0rd1",
	})
	require.NoError(t, err)

	user, err := svc.Login(context.Background(), "dana@example.com", "passw0rd1")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", user.Email)

	_, err = svc.Login(context.Background(), "dana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.Login(context.Background(), "nobody@example.com", "passw0rd1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
