package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"organic-hub/common/auth"
	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/repository"
)

func newTestAuth(repo *MockUserRepository) (AuthService, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret", 15*time.Minute, 24*time.Hour)
	svc := NewAuthService(repo, tokens, nil, testLogger)
	svc.(*authServiceImpl).cost = bcrypt.MinCost
	return svc, tokens
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestPasswordPolicy(t *testing.T) {
	p := DefaultPasswordPolicy()
	cases := map[string]error{
		"Short1":         ErrPasswordTooShort,
		"alllowercase1":  ErrPasswordNoUpper,
		"ALLUPPERCASE1":  ErrPasswordNoLower,
		"NoNumbersHere":  ErrPasswordNoNumber,
		"Password1":      ErrPasswordCommon,
		"Baaaad1234":     ErrPasswordRepeating,
		"Kale4Breakfast": nil,
	}
	for pw, want := range cases {
		assert.Equal(t, want, p.Validate(pw), pw)
	}
}

func TestRegister(t *testing.T) {
	repo := new(MockUserRepository)
	svc, tokens := newTestAuth(repo)
	ctx := context.Background()
	repo.On("FindByEmail", ctx, "ada@example.com").Return(nil, repository.ErrNotFound).Once()
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "ada@example.com" && u.Role == models.RoleUser && u.Password != "Kale4Breakfast"
	})).Return(nil).Once()

	res, err := svc.Register(ctx, RegisterRequest{Name: " Ada ", Email: "Ada@Example.com ", Password: "Kale4Breakfast"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.User.Name)

	claims, err := tokens.Parse(res.Tokens.AccessToken, auth.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.UserID())
	assert.Equal(t, models.RoleUser, claims.Role)
	repo.AssertExpectations(t)
}

func TestRegisterRejectsTakenEmailAndWeakPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestAuth(repo)
	ctx := context.Background()
	repo.On("FindByEmail", ctx, "ada@example.com").Return(&models.User{}, nil)

	_, err := svc.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "Kale4Breakfast"})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "weak"})
	assert.Equal(t, 400, apperrors.As(err).Code)
}

func TestLogin(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestAuth(repo)
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Password: hashed(t, "Kale4Breakfast"), Role: models.RoleAdmin}
	repo.On("FindByEmail", ctx, "ada@example.com").Return(user, nil)
	repo.On("FindByEmail", ctx, "nobody@example.com").Return(nil, repository.ErrNotFound)

	res, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "Kale4Breakfast"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	_, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	repo := new(MockUserRepository)
	svc, tokens := newTestAuth(repo)
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Role: models.RoleUser}
	repo.On("FindByID", ctx, user.ID).Return(user, nil)

	pair, err := tokens.Issue(user.ID.String(), user.Email, user.Role)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
}

func TestChangePassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestAuth(repo)
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Password: hashed(t, "Kale4Breakfast")}
	repo.On("FindByID", ctx, user.ID).Return(user, nil)
	repo.On("Update", ctx, user).Return(nil).Once()

	err := svc.ChangePassword(ctx, user.ID.String(), PasswordChange{CurrentPassword: "nope", NewPassword: "Beets4Dinner"})
	assert.Equal(t, 401, apperrors.As(err).Code)

	require.NoError(t, svc.ChangePassword(ctx, user.ID.String(), PasswordChange{CurrentPassword: "Kale4Breakfast", NewPassword: "Beets4Dinner"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Beets4Dinner")))
	repo.AssertExpectations(t)
}

func TestEnsureAdmin(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestAuth(repo)
	ctx := context.Background()

	repo.On("FindByEmail", ctx, "admin@organichub.test").Return(nil, repository.ErrNotFound).Once()
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool { return u.Role == models.RoleAdmin })).Return(nil).Once()
	require.NoError(t, svc.EnsureAdmin(ctx, "Admin@OrganicHub.test", "Secret123"))

	existing := &models.User{ID: uuid.New(), Email: "admin@organichub.test", Role: models.RoleUser}
	repo.On("FindByEmail", ctx, "admin@organichub.test").Return(existing, nil).Once()
	repo.On("Update", ctx, existing).Return(nil).Once()
	require.NoError(t, svc.EnsureAdmin(ctx, "admin@organichub.test", "Secret123"))
	assert.True(t, existing.IsAdmin())

	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))
	repo.AssertExpectations(t)
}
