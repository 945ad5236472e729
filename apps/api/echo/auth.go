package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/user"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT, as issued by the auth provider.
type Claims struct {
	jwt.StandardClaims
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (c Claims) Identity() core.Identity {
	return core.Identity{
		ID:       c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		FullName: c.FullName,
		Roles:    c.Roles,
	}
}

func (c Claims) hasAnyRole(roles ...string) bool {
	return user.Profile{Roles: c.Roles}.HasAnyRole(roles...)
}

func jwtConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of identity, valid for ttl.
func NewClaims(identity core.Identity, issuer string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   identity.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:    identity.Email,
		Name:     identity.Name,
		FullName: identity.FullName,
		Roles:    identity.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
