package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := GenerateAPIKey()
		if !strings.HasPrefix(key, "rfa_") {
			t.Fatalf("key missing prefix: %q", key)
		}
		if len(key) != len("rfa_")+32 {
			t.Fatalf("key wrong length: %q (%d)", key, len(key))
		}
		for _, c := range key[len("rfa_"):] {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Fatalf("key body not lowercase hex: %q", key)
			}
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestLooksLikeAPIKey(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{GenerateAPIKey(), true},
		{"", false},
		{"rfa_short", false},
		{"sk_" + strings.Repeat("a", 32), false},
		{"rfa_" + strings.Repeat("a", 33), false},
	}
	for _, tt := range tests {
		if got := LooksLikeAPIKey(tt.token); got != tt.want {
			t.Errorf("LooksLikeAPIKey(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestAdminJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, expiresAt, err := GenerateAdminJWT("admin", secret)
	if err != nil {
		t.Fatalf("GenerateAdminJWT failed: %v", err)
	}
	if expiresAt == 0 {
		t.Error("expected nonzero expiry")
	}

	claims, err := ValidateAdminJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateAdminJWT failed: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username admin, got %q", claims.Username)
	}
}

func TestAdminJWTRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateAdminJWT("admin", []byte("right-secret"))
	if err != nil {
		t.Fatalf("GenerateAdminJWT failed: %v", err)
	}
	if _, err := ValidateAdminJWT(token, []byte("wrong-secret")); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestAdminJWTRejectsGarbage(t *testing.T) {
	if _, err := ValidateAdminJWT("not.a.token", []byte("secret")); err == nil {
		t.Fatal("expected validation to fail on garbage input")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}
