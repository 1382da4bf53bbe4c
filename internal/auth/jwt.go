package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"polymer-learn-service/internal/domain"
)

// Role gates instructor-only endpoints.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// User is the authenticated caller.
type User struct {
	ID   string
	Name string
	Role Role
}

// IsInstructor reports whether the caller may manage content and view class data.
func (u User) IsInstructor() bool { return u.Role == RoleInstructor }

type claims struct {
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for user.
func (a *Authenticator) Issue(user User) (string, error) {
	if user.ID == "" {
		return "", domain.NewValidationError("sub", "is required")
	}
	if user.Role == "" {
		user.Role = RoleStudent
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Parse verifies raw and returns its user.
func (a *Authenticator) Parse(raw string) (User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	role := c.Role
	if role != RoleInstructor {
		role = RoleStudent
	}
	return User{ID: c.Subject, Name: c.Name, Role: role}, nil
}

// Authenticate reads the bearer token from the Authorization header, or from
// the access_token query parameter for WebSocket upgrades.
func (a *Authenticator) Authenticate(r *http.Request) (User, error) {
	raw := r.URL.Query().Get("access_token")
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return User{}, fmt.Errorf("%w: invalid authorization header format", domain.ErrUnauthenticated)
		}
		raw = strings.TrimPrefix(header, "Bearer ")
	}
	if raw == "" {
		return User{}, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}
	return a.Parse(raw)
}

type userKey struct{}

// WithUser attaches user to ctx.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// FromContext returns the user attached by WithUser.
func FromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey{}).(User)
	return user, ok && user.ID != ""
}

// ContextIdentity resolves the caller from the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (string, error) {
	user, ok := FromContext(ctx)
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return user.ID, nil
}

func (ContextIdentity) CurrentUserName(ctx context.Context) string {
	user, _ := FromContext(ctx)
	return user.Name
}
