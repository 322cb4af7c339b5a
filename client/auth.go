package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"organic-hub/common/auth"
	"organic-hub/models"
	"organic-hub/pkg/localstore"
)

var (
	ErrNotAuthenticated   = errors.New("not signed in")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingFields      = errors.New("name, email and password are required")
)

const demoTokenPrefix = "demo."

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type Session struct {
	User   models.User     `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
	// Local is set when the session was created against the local users
	// list because the API was unreachable.
	Local bool `json:"-"`
}

// LocalUser is an account created while offline. Passwords are kept in
// plain text; this list only backs the demo path.
type LocalUser struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u LocalUser) user() models.User {
	return models.User{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role, CreatedAt: u.CreatedAt, UpdatedAt: u.CreatedAt}
}

// DemoClaims is the payload of a locally minted token.
type DemoClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IssuedAt int64  `json:"iat"`
}

// EncodeDemoToken returns "demo." followed by the base64 JSON claims.
func EncodeDemoToken(c DemoClaims) string {
	raw, _ := json.Marshal(c)
	return demoTokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeDemoToken(token string) (DemoClaims, error) {
	var c DemoClaims
	payload, ok := strings.CutPrefix(token, demoTokenPrefix)
	if !ok {
		return c, fmt.Errorf("not a demo token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return c, fmt.Errorf("decode demo token: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode demo token: %w", err)
	}
	return c, nil
}

func IsDemoToken(token string) bool {
	return strings.HasPrefix(token, demoTokenPrefix)
}

// Register creates an account. When the API is unreachable the account is
// added to the local users list instead.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	var res Session
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: in}, &res)
	if err == nil {
		return c.acceptSession(&res)
	}
	if !IsNetworkError(err) {
		return nil, err
	}

	c.logger.Warn("API unreachable, registering locally", zap.String("email", in.Email), zap.Error(err))
	return c.registerLocal(in)
}

func (c *Client) registerLocal(in RegisterInput) (*Session, error) {
	if strings.TrimSpace(in.Name) == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	created := LocalUser{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  in.Password,
		Role:      models.RoleUser,
		CreatedAt: c.now().UTC(),
	}
	_, err := localstore.Update(c.store, localstore.KeyUsers, func(users []LocalUser) ([]LocalUser, error) {
		for _, u := range users {
			if u.Email == created.Email {
				return nil, ErrEmailTaken
			}
		}
		return append(users, created), nil
	})
	if err != nil {
		return nil, err
	}
	return c.localSession(created)
}

// Login signs in. When the API is unreachable the local users list is
// checked instead.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	var res Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	}, &res)
	if err == nil {
		return c.acceptSession(&res)
	}
	if !IsNetworkError(err) {
		return nil, err
	}

	c.logger.Warn("API unreachable, signing in locally", zap.String("email", email), zap.Error(err))
	var users []LocalUser
	if _, err := c.store.Get(localstore.KeyUsers, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			return c.localSession(u)
		}
	}
	return nil, ErrInvalidCredentials
}

func (c *Client) localSession(u LocalUser) (*Session, error) {
	token := EncodeDemoToken(DemoClaims{UserID: u.ID.String(), Email: u.Email, Role: u.Role, IssuedAt: c.now().Unix()})
	user := u.user()
	if err := c.saveSession(user, token); err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: &auth.TokenPair{AccessToken: token}, Local: true}, nil
}

func (c *Client) acceptSession(s *Session) (*Session, error) {
	if s.Tokens == nil || s.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no token")
	}
	if err := c.saveSession(s.User, s.Tokens.AccessToken); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) saveSession(user models.User, token string) error {
	if err := c.store.Set(localstore.KeyToken, token); err != nil {
		return err
	}
	return c.store.Set(localstore.KeyUser, user)
}

func (c *Client) Logout() error {
	return c.store.Remove(localstore.KeyToken, localstore.KeyUser)
}

// CurrentUser returns the signed in user from the local session.
func (c *Client) CurrentUser() (*models.User, bool) {
	if c.store.GetString(localstore.KeyToken) == "" {
		return nil, false
	}
	var u models.User
	if ok, err := c.store.Get(localstore.KeyUser, &u); !ok || err != nil {
		return nil, false
	}
	return &u, true
}

func (c *Client) IsAuthenticated() bool {
	_, ok := c.CurrentUser()
	return ok
}

// online reports whether the session holds a server issued token.
func (c *Client) online() bool {
	token := c.store.GetString(localstore.KeyToken)
	return token != "" && !IsDemoToken(token)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
