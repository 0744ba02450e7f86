package security

import (
	"errors"
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGenerate := GenerateToken("jwt-test-secret", 42, "user@example.com", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}

	claims, errParse := ParseToken("jwt-test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("user id = %d, want 42", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, errGenerate := GenerateToken("jwt-test-secret", 42, "user@example.com", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseToken("different-secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, errGenerate := GenerateToken("jwt-test-secret", 42, "user@example.com", -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseToken("jwt-test-secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestAdminTokenCarriesMFAState(t *testing.T) {
	token, errGenerate := GenerateAdminToken("jwt-test-secret", 7, "root", false, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate admin token: %v", errGenerate)
	}
	claims, errParse := ParseAdminToken("jwt-test-secret", token)
	if errParse != nil {
		t.Fatalf("parse admin token: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.MFAVerified {
		t.Fatalf("expected unverified MFA state")
	}

	verified, errGenerate := GenerateAdminToken("jwt-test-secret", 7, "root", true, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate verified token: %v", errGenerate)
	}
	claims, errParse = ParseAdminToken("jwt-test-secret", verified)
	if errParse != nil {
		t.Fatalf("parse verified token: %v", errParse)
	}
	if !claims.MFAVerified {
		t.Fatalf("expected verified MFA state")
	}
}
