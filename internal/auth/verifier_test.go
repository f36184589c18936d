package auth

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", "contest-service")

	token, err := verifier.Issue("user-42", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("expected user-42, got %s", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenVerifier("secret-a", "").Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenVerifier("secret-b", "").Verify(token); err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", "")
	token, err := verifier.Issue("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestUserIDFromRequest(t *testing.T) {
	verifier := NewTokenVerifier("test-secret", "")
	token, err := verifier.Issue("user-9", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	if got := verifier.UserID(r); got != "" {
		t.Fatalf("missing header must yield empty user id, got %q", got)
	}

	r.Header.Set("Authorization", "Bearer "+token)
	if got := verifier.UserID(r); got != "user-9" {
		t.Fatalf("expected user-9, got %q", got)
	}

	r.Header.Set("Authorization", "Basic abc")
	if got := verifier.UserID(r); got != "" {
		t.Fatalf("non-bearer header must yield empty user id, got %q", got)
	}
}
