// Package auth reads the bearer tokens minted by the external identity provider and
// turns them into order actors.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/dejobratic/lantern/internal/httpx"
	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims are the identity claims lantern relies on. The subject is the actor id.
type Claims struct {
	Role    string `json:"role,omitempty"`
	VenueID string `json:"venue_id,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// Parse validates a raw token and returns the actor it identifies. Tokens without a
// role are buyers.
func (a *Authenticator) Parse(raw string) (domain.Actor, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Actor{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}

	role := domain.Role(claims.Role)
	switch role {
	case "":
		role = domain.RoleBuyer
	case domain.RoleBuyer, domain.RoleAdmin:
	case domain.RoleOperator:
		if claims.VenueID == "" {
			return domain.Actor{}, fmt.Errorf("%w: operator token without venue_id", ErrInvalidToken)
		}
	default:
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return domain.Actor{ID: claims.Subject, Role: role, VenueID: claims.VenueID}, nil
}

// Middleware rejects requests without a valid bearer token and stores the actor in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}

		actor, err := a.Parse(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole lets through only actors holding one of roles. It must run after Middleware.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok || !slices.Contains(roles, actor.Role) {
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}
