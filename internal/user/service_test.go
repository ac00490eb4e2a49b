package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	byUsername map[string]*User
}

func newMemStore() *memStore {
	return &memStore{byUsername: make(map[string]*User)}
}

func (s *memStore) CreateUser(_ context.Context, u *User) (*User, error) {
	if _, ok := s.byUsername[u.Username]; ok {
		return nil, errors.New("username taken")
	}
	s.byUsername[u.Username] = u
	return u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*User, error) {
	for _, u := range s.byUsername {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (s *memStore) SearchUsers(_ context.Context, query string) ([]User, error) {
	var out []User
	for _, u := range s.byUsername {
		out = append(out, *u)
	}
	return out, nil
}

func TestService_RegisterLoginValidate(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret", time.Hour)
	ctx := context.Background()

	created, err := svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "password123"})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Empty(created.Password)

	res, err := svc.Login(ctx, &RegisterRequest{Username: "alice", Password: "password123"})
	req.NoError(err)
	req.Equal(created.ID, res.ID)
	req.NotEmpty(res.AccessToken)

	// The issued credential resolves back to the same subject.
	id, username, err := svc.ValidateToken(res.AccessToken)
	req.NoError(err)
	req.Equal(created.ID, id)
	req.Equal("alice", username)
}

func TestService_LoginWrongPassword(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret", time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Username: "alice", Password: "password123"})
	req.NoError(err)

	_, err = svc.Login(ctx, &RegisterRequest{Username: "alice", Password: "wrong-password"})
	req.Error(err)
}

func TestService_ValidateTokenRejectsGarbage(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret", time.Hour)

	_, _, err := svc.ValidateToken("not-a-token")
	req.Error(err)
}

func TestService_ValidateTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newMemStore()

	issuer := NewService(store, "secret-one", time.Hour)
	_, err := issuer.Register(ctx, &RegisterRequest{Username: "alice", Password: "password123"})
	req.NoError(err)
	res, err := issuer.Login(ctx, &RegisterRequest{Username: "alice", Password: "password123"})
	req.NoError(err)

	verifier := NewService(store, "secret-two", time.Hour)
	_, _, err = verifier.ValidateToken(res.AccessToken)
	req.Error(err)
}
