package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type mockDeactivatableUserRepo struct {
	users       map[string]*models.User
	deactivated []string
}

func (m *mockDeactivatableUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDeactivatableUserRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if u, ok := m.users[id]; ok {
		u.Active = false
		now := time.Now()
		u.DeactivatedAt = &now
	}
	return nil
}

func newUserFixture() (*mockDeactivatableUserRepo, *mockAuditLogger, *UserService) {
	repo := &mockDeactivatableUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "citizen@example.org", Name: "Citizen One", Active: true},
	}}
	audit := &mockAuditLogger{}
	return repo, audit, NewUserService(repo, audit, zap.NewNop())
}

func TestUserServiceGetSelf(t *testing.T) {
	_, _, svc := newUserFixture()

	user, err := svc.Get(context.Background(), "u1", &models.JWTClaims{UserID: "u1", Role: models.RoleContributor})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestUserServiceGetOtherForbidden(t *testing.T) {
	_, _, svc := newUserFixture()

	_, err := svc.Get(context.Background(), "u1", &models.JWTClaims{UserID: "u2", Role: models.RoleContributor})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "u1", moderatorClaims())
	require.NoError(t, err)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo, audit, svc := newUserFixture()

	err := svc.Deactivate(context.Background(), "u1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, repo.deactivated)
	assert.Equal(t, "citizen@example.org", repo.users["u1"].Email, "identity fields must survive deactivation")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionUserDeactivate, audit.entries[0].Action)
}

func TestUserServiceDeactivateTwice(t *testing.T) {
	_, _, svc := newUserFixture()

	require.NoError(t, svc.Deactivate(context.Background(), "u1", adminClaims()))
	err := svc.Deactivate(context.Background(), "u1", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateRequiresAdmin(t *testing.T) {
	_, _, svc := newUserFixture()

	err := svc.Deactivate(context.Background(), "u1", moderatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
