package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"organic-hub/common/auth"
	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/repository"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ProfileUpdate struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=80"`
	Phone *string `json:"phone" binding:"omitempty,max=20"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID string, req PasswordChange) error
	// EnsureAdmin creates the admin account, or promotes an existing user
	// with that email.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type authServiceImpl struct {
	users  repository.UserRepository
	tokens *auth.Tokens
	policy *PasswordPolicy
	cost   int
	logger *zap.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.Tokens, policy *PasswordPolicy, logger *zap.Logger) AuthService {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &authServiceImpl{users: users, tokens: tokens, policy: policy, cost: bcrypt.DefaultCost, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authServiceImpl) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := s.policy.Validate(req.Password); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	email := normalizeEmail(req.Email)

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrEmailTaken
	}
	if err != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to create account", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}
	user := &models.User{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Phone:    strings.TrimSpace(req.Phone),
		Password: string(hash),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.Internal("failed to create account", err)
	}

	pair, err := s.tokens.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal("failed to issue tokens", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *authServiceImpl) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err == repository.ErrNotFound {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal("failed to log in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal("failed to issue tokens", err)
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	// role may have changed since the refresh token was issued
	user, err := s.Me(ctx, claims.UserID())
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	pair, err := s.tokens.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal("failed to issue tokens", err)
	}
	return pair, nil
}

func (s *authServiceImpl) Me(ctx context.Context, userID string) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid user id")
	}
	user, err := s.users.FindByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	return user, nil
}

func (s *authServiceImpl) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.Internal("failed to update profile", err)
	}
	return user, nil
}

func (s *authServiceImpl) ChangePassword(ctx context.Context, userID string, req PasswordChange) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperrors.New(http.StatusUnauthorized, "Current password is incorrect", nil)
	}
	if err := s.policy.Validate(req.NewPassword); err != nil {
		return apperrors.BadRequest(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}
	user.Password = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.Internal("failed to change password", err)
	}
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

func (s *authServiceImpl) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsAdmin() {
			return nil
		}
		user.Role = models.RoleAdmin
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		s.logger.Info("user promoted to admin", zap.String("email", email))
		return nil
	case err != repository.ErrNotFound:
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	admin := &models.User{ID: uuid.New(), Name: "Administrator", Email: email, Password: string(hash), Role: models.RoleAdmin}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("admin account created", zap.String("email", email))
	return nil
}
