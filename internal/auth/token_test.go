// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and leeway handling

package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func mustNewJWTVerifier(t *testing.T, secret []byte) *JWTVerifier {
	t.Helper()
	verifier, err := NewJWTVerifier(secret, 0)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return verifier
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := mustNewJWTVerifier(t, testSecret)

	userID := "user-123"
	token, err := verifier.Generate(userID, nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	payload, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if payload.UserID != userID {
		t.Errorf("UserID = %q, want %q", payload.UserID, userID)
	}
	if payload.WalletAddress != nil {
		t.Errorf("WalletAddress = %v, want nil", payload.WalletAddress)
	}
	if payload.Exp == 0 || payload.Iat == 0 {
		t.Errorf("expected non-zero exp/iat, got exp=%d iat=%d", payload.Exp, payload.Iat)
	}
}

func TestJWTVerifier_ValidTokenWithWallet(t *testing.T) {
	verifier := mustNewJWTVerifier(t, testSecret)
	wallet := "0xabc123"

	token, err := verifier.Generate("user-456", &wallet, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	payload, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if payload.WalletAddress == nil || *payload.WalletAddress != wallet {
		t.Errorf("WalletAddress = %v, want %q", payload.WalletAddress, wallet)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := mustNewJWTVerifier(t, testSecret)
	otherVerifier := mustNewJWTVerifier(t, []byte("different-secret-at-least-32bytes"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not-a-jwt-token"},
		{"malformed JWT", "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				token, _ := otherVerifier.Generate("user-123", nil, time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(tt.token); err == nil {
				t.Error("Verify() should have returned an error")
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := mustNewJWTVerifier(t, testSecret)

	token, err := verifier.Generate("user-123", nil, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_LeewayToleratesRecentExpiry(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret, 5*time.Second)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	token, err := verifier.Generate("user-123", nil, -2*time.Second)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.Verify(token); err != nil {
		t.Errorf("Verify() error = %v, want nil (within leeway)", err)
	}
}

func TestJWTVerifier_WeakSecret(t *testing.T) {
	weakSecrets := [][]byte{
		nil,
		{},
		[]byte("short"),
		[]byte("31-bytes-not-quite-enough-here!"),
	}

	for _, secret := range weakSecrets {
		_, err := NewJWTVerifier(secret, 0)
		if !errors.Is(err, ErrWeakSecret) {
			t.Errorf("NewJWTVerifier(%q) error = %v, want ErrWeakSecret", secret, err)
		}
	}

	exactSecret := []byte("exactly-32-bytes-secret-here!!!!")
	if len(exactSecret) != 32 {
		t.Fatalf("test setup error: secret is %d bytes, want 32", len(exactSecret))
	}
	if _, err := NewJWTVerifier(exactSecret, 0); err != nil {
		t.Errorf("NewJWTVerifier() with 32-byte secret error = %v, want nil", err)
	}
}

func TestJWTVerifier_DifferentUsers(t *testing.T) {
	verifier := mustNewJWTVerifier(t, testSecret)

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		token, err := verifier.Generate(userID, nil, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", userID, err)
		}
		payload, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if payload.UserID != userID {
			t.Errorf("UserID = %q, want %q", payload.UserID, userID)
		}
	}
}
