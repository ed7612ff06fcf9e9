package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner("s3cret", time.Hour, "dev")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := signer.Sign("user-1", "a@example.com", "editor")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Sub != "user-1" || claims.Email != "a@example.com" || claims.Role != "editor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer, _ := NewSigner("s3cret", time.Minute, "dev")
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, err := signer.Sign("user-1", "", "viewer")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := signer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, _ := NewSigner("secret-a", time.Hour, "dev")
	b, _ := NewSigner("secret-b", time.Hour, "dev")
	token, _ := a.Sign("user-1", "", "admin")
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	signer, _ := NewSigner("s3cret", time.Hour, "dev")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Sub: "user-1", Role: "admin"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := signer.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewSignerRequiresSecretInProduction(t *testing.T) {
	if _, err := NewSigner("", time.Hour, "production"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, err := NewSigner("", time.Hour, "dev"); err != nil {
		t.Fatalf("dev should fall back to a default secret: %v", err)
	}
}
