// Package auth bridges the external identity provider: it verifies bearer
// JWTs and bootstraps the caller's profile.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ripplechat/internal/models"
	"ripplechat/internal/profile"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims mirrors the identity provider's ID token.
type Claims struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() profile.Identity {
	return profile.Identity{
		UID:         c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		PhotoURL:    c.Picture,
		Username:    c.Username,
	}
}

// Bootstrapper turns a verified identity into a stored profile.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, id profile.Identity) (models.User, error)
}

// GenerateAccessToken signs an HS256 token for id. The identity provider
// issues real tokens; this is used by tests and local tooling.
func GenerateAccessToken(id profile.Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:     id.DisplayName,
		Email:    id.Email,
		Picture:  id.PhotoURL,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseAccessToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// BearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for websocket clients.
func BearerToken(c *gin.Context, allowQuery bool) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// Authenticate verifies tokenStr and returns the bootstrapped profile.
func Authenticate(ctx context.Context, tokenStr, secret string, profiles Bootstrapper) (models.User, error) {
	if tokenStr == "" {
		return models.User{}, ErrMissingToken
	}
	claims, err := ParseAccessToken(tokenStr, secret)
	if err != nil {
		return models.User{}, ErrInvalidToken
	}
	return profiles.Bootstrap(ctx, claims.Identity())
}

func AuthMiddleware(secret string, profiles Bootstrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := Authenticate(c.Request.Context(), BearerToken(c, false), secret, profiles)
		switch {
		case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error().Err(err).Msg("profile bootstrap")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}
		c.Set("uid", user.UID)
		c.Set("user", user)
		c.Next()
	}
}

func GetUID(c *gin.Context) string {
	if v, ok := c.Get("uid"); ok {
		if id, ok2 := v.(string); ok2 {
			return id
		}
	}
	return ""
}

func CurrentUser(c *gin.Context) models.User {
	if v, ok := c.Get("user"); ok {
		if u, ok2 := v.(models.User); ok2 {
			return u
		}
	}
	return models.User{}
}
