package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"onechurch/apperr"
	"onechurch/config"
	"onechurch/models"
	"onechurch/store"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	actorKey = "actor"
)

type Claims struct {
	ID    string           `json:"_id"`
	Kind  models.ActorKind `json:"kind"`
	Email string           `json:"email"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access and refresh tokens.
type Tokens struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
}

func NewTokens(cfg *config.Config) *Tokens {
	refresh := cfg.Auth.RefreshTokenSecret
	if refresh == "" {
		refresh = cfg.Auth.AccessTokenSecret
	}
	return &Tokens{
		accessSecret:  []byte(cfg.Auth.AccessTokenSecret),
		accessTTL:     cfg.Auth.AccessTokenExpiry,
		refreshSecret: []byte(refresh),
		refreshTTL:    cfg.Auth.RefreshTokenExpiry,
	}
}

func (t *Tokens) AccessTTL() time.Duration  { return t.accessTTL }
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *Tokens) IssueAccess(a *models.Actor) (string, error) {
	return sign(a, t.accessSecret, t.accessTTL)
}

func (t *Tokens) IssueRefresh(a *models.Actor) (string, error) {
	return sign(a, t.refreshSecret, t.refreshTTL)
}

func (t *Tokens) ParseAccess(token string) (*Claims, error) {
	return parse(token, t.accessSecret)
}

func (t *Tokens) ParseRefresh(token string) (*Claims, error) {
	return parse(token, t.refreshSecret)
}

func sign(a *models.Actor, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    a.ID.Hex(),
		Kind:  a.Kind,
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return s, errors.Wrap(err, "sign token")
}

func parse(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// TokenFromRequest reads the access token from the cookie, then the bearer
// header, then (when allowQuery is set) the token query parameter.
func TokenFromRequest(c *gin.Context, allowQuery bool) string {
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie != "" {
		return cookie
	}
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// Authenticator turns a token into the User or Minister it names.
type Authenticator struct {
	tokens *Tokens
	actors store.ActorStore
}

func NewAuthenticator(tokens *Tokens, actors store.ActorStore) *Authenticator {
	return &Authenticator{tokens: tokens, actors: actors}
}

// Resolve looks the subject up in both collections at once. A minister match
// takes precedence over a user match with the same id.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.Actor, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Unauthorized request")
	}
	claims, err := a.tokens.ParseAccess(token)
	if err != nil {
		return nil, apperr.Wrap(err, http.StatusUnauthorized, "Invalid access token")
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid access token")
	}

	var user, minister *models.Actor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := a.actors.GetActor(gctx, models.KindUser, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		user = found
		return nil
	})
	g.Go(func() error {
		found, err := a.actors.GetActor(gctx, models.KindMinister, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		minister = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err, "Failed to resolve actor")
	}

	switch {
	case minister != nil:
		return minister, nil
	case user != nil:
		return user, nil
	}
	return nil, apperr.Unauthorized("Invalid access token")
}

// RequireAuth rejects the request with 401 unless a valid token resolves to
// an actor.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		actor, err := a.Resolve(ctx, TokenFromRequest(c, false))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// OptionalAuth sets the actor when the token resolves and never rejects.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := TokenFromRequest(c, false); token != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
			actor, err := a.Resolve(ctx, token)
			cancel()
			if err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

// MinisterOnly must run after RequireAuth.
func MinisterOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := CurrentActor(c); actor == nil || actor.Kind != models.KindMinister {
			_ = c.Error(apperr.Forbidden("Only ministers can perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentActor returns the actor set by RequireAuth or OptionalAuth, or nil.
func CurrentActor(c *gin.Context) *models.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*models.Actor)
	return actor
}
