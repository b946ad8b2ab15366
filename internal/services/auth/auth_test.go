package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Expected hash to differ from the password")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("Expected password to match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPassword_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"too short", "short", true},
		{"minimum", "12345678", false},
		{"too long", strings.Repeat("x", 73), true},
		{"multibyte within 72 characters but over 72 bytes", strings.Repeat("é", 40), true},
		{"multibyte at the byte limit", strings.Repeat("é", 36), false},
		{"eight multibyte characters", "密码密码密码密码", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidatePassword(tt.password); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword: expected error=%v, got %v", tt.wantErr, err)
			}
			_, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewTokenManager_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager("short", time.Hour); err == nil {
		t.Error("Expected error for short secret")
	}
	if _, err := NewTokenManager(testSecret, 0); err == nil {
		t.Error("Expected error for zero ttl")
	}
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	m, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	userID := uuid.New()

	token, err := m.Issue(userID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	got, err := UserIDFromClaims(claims)
	if err != nil {
		t.Fatalf("UserIDFromClaims failed: %v", err)
	}
	if got != userID {
		t.Errorf("Expected subject %s, got %s", userID, got)
	}
	if claims.Iss != DefaultIssuer {
		t.Errorf("Expected issuer %s, got %s", DefaultIssuer, claims.Iss)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Add(-2 * time.Hour)
	expired, err := NewTokenManager(testSecret, time.Hour, WithClock(func() time.Time { return issuedAt }))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	current, _ := NewTokenManager(testSecret, time.Hour)
	otherKey, _ := NewTokenManager("fedcba9876543210fedcba9876543210", time.Hour)
	otherIssuer, _ := NewTokenManager(testSecret, time.Hour, WithIssuer("someone-else"))

	expiredToken, _ := expired.Issue(uuid.New())
	otherKeyToken, _ := otherKey.Issue(uuid.New())
	otherIssuerToken, _ := otherIssuer.Issue(uuid.New())

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expiredToken},
		{"wrong key", otherKeyToken},
		{"wrong issuer", otherIssuerToken},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := current.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
