package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func claimsFor(subject, role, venueID string) Claims {
	return Claims{
		Role:    role,
		VenueID: venueID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "identity.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticatorParse(t *testing.T) {
	authn := NewAuthenticator(testSecret, "identity.example.com")

	expired := claimsFor("buyer-1", "", "")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := claimsFor("buyer-1", "", "")
	noExpiry.ExpiresAt = nil

	wrongIssuer := claimsFor("buyer-1", "", "")
	wrongIssuer.Issuer = "evil.example.com"

	tests := []struct {
		name      string
		token     string
		wantActor domain.Actor
		wantErr   bool
	}{
		{
			name:      "buyer by default",
			token:     sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("buyer-1", "", "")),
			wantActor: domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer},
		},
		{
			name:      "operator with venue",
			token:     sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("op-1", "operator", "venue-1")),
			wantActor: domain.Actor{ID: "op-1", Role: domain.RoleOperator, VenueID: "venue-1"},
		},
		{
			name:      "admin",
			token:     sign(t, jwt.SigningMethodHS512, testSecret, claimsFor("admin-1", "admin", "")),
			wantActor: domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
		},
		{name: "operator without venue", token: sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("op-1", "operator", "")), wantErr: true},
		{name: "unknown role", token: sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("x", "superuser", "")), wantErr: true},
		{name: "missing subject", token: sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("", "", "")), wantErr: true},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, "other", claimsFor("buyer-1", "", "")), wantErr: true},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, testSecret, expired), wantErr: true},
		{name: "no expiry", token: sign(t, jwt.SigningMethodHS256, testSecret, noExpiry), wantErr: true},
		{name: "wrong issuer", token: sign(t, jwt.SigningMethodHS256, testSecret, wrongIssuer), wantErr: true},
		{name: "garbage", token: "not-a-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := authn.Parse(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("expected ErrInvalidToken, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if actor != tt.wantActor {
				t.Errorf("expected %+v, got %+v", tt.wantActor, actor)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	authn := NewAuthenticator(testSecret, "")

	var seen domain.Actor
	protected := authn.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token reaches handler with actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, testSecret, claimsFor("buyer-1", "", "")))
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if seen.ID != "buyer-1" || seen.Role != domain.RoleBuyer {
			t.Errorf("unexpected actor %+v", seen)
		}
	})

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer nope"} {
		t.Run("rejects "+header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(domain.RoleOperator, domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name  string
		actor *domain.Actor
		want  int
	}{
		{"operator allowed", &domain.Actor{ID: "op-1", Role: domain.RoleOperator, VenueID: "venue-1"}, http.StatusNoContent},
		{"admin allowed", &domain.Actor{ID: "admin", Role: domain.RoleAdmin}, http.StatusNoContent},
		{"buyer forbidden", &domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}, http.StatusForbidden},
		{"no actor forbidden", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/discount-codes", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
