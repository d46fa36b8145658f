package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesSessionTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := issuer.IssueToken(User{UID: "user-123", Email: "me@example.com"})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}

	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}

	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "scribe-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "scribe-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{TokenTTL: 30 * time.Minute})

	if _, _, err := issuer.IssueToken(User{UID: "user-123"}); err == nil {
		t.Fatalf("expected issuance error for missing secret")
	}
	if _, err := issuer.ValidateToken("whatever"); err == nil {
		t.Fatalf("expected validation error for missing secret")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("another-secret"),
		TokenTTL:      15 * time.Minute,
	})

	tokenString, _, err := issuer.IssueToken(User{UID: "user-321"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if subject != "user-321" {
		t.Fatalf("unexpected subject %s", subject)
	}

	if _, err := issuer.ValidateToken("invalid.token"); err == nil {
		t.Fatalf("expected validation to fail for malformed token")
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		TokenTTL:      5 * time.Minute,
		Clock:         func() time.Time { return issuedAt },
	})

	tokenString, _, err := issuer.IssueToken(User{UID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	lateIssuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		TokenTTL:      5 * time.Minute,
		Clock:         func() time.Time { return issuedAt.Add(time.Hour) },
	})
	if _, err := lateIssuer.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTokenIssuerRejectsEmptySubject(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		TokenTTL:      5 * time.Minute,
	})
	if _, _, err := issuer.IssueToken(User{}); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}
