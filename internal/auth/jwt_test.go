package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-key-0123456789abcdef", time.Hour)

	token, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("email: expected 'a@x.com', got '%s'", claims.Email)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-one", time.Hour).Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	_, err = NewJWTManager("secret-two", time.Hour).Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.Generate("a@x.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestJWTManager_EmptyEmail(t *testing.T) {
	if _, err := NewJWTManager("secret", time.Hour).Generate(""); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	const secret = "test-secret"
	m := NewJWTManager(secret, time.Hour)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		return s
	}
	valid := func(email, subject string) Claims {
		return Claims{
			Email: email,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    Issuer,
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	noExpiry := valid("a@x.com", "a@x.com")
	noExpiry.ExpiresAt = nil
	otherIssuer := valid("a@x.com", "a@x.com")
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"subject mismatch", sign(jwt.SigningMethodHS256, []byte(secret), valid("a@x.com", "b@x.com"))},
		{"empty email", sign(jwt.SigningMethodHS256, []byte(secret), valid("", ""))},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte(secret), noExpiry)},
		{"other issuer", sign(jwt.SigningMethodHS256, []byte(secret), otherIssuer)},
		{"other algorithm", sign(jwt.SigningMethodHS512, []byte(secret), valid("a@x.com", "a@x.com"))},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWTManager_NormalizesEmail(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.Generate("  Alice@X.com ")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Email != "alice@x.com" || claims.Subject != "alice@x.com" {
		t.Errorf("claims = %q/%q, want alice@x.com", claims.Email, claims.Subject)
	}
}
