package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{name: "valid strong password", password: "SecureP@ss123"},
		{name: "valid with symbols", password: "MyP@ssw0rd!"},
		{name: "too short", password: "Pa@1", shouldFail: true},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true},
		{name: "missing special character", password: "SecurePass123", shouldFail: true},
		{name: "too long", password: "Aa1!" + strings.Repeat("x", 80), shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail && err == nil {
				t.Errorf("ValidatePassword(%q) = nil, want error", tt.password)
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("ValidatePassword(%q) = %v, want nil", tt.password, err)
			}
			if err != nil {
				var pvErr *PasswordValidationError
				if !errors.As(err, &pvErr) {
					t.Errorf("error type = %T, want *PasswordValidationError", err)
				}
			}
		})
	}
}

func TestValidatePassword_CommonPassword(t *testing.T) {
	err := ValidatePassword("Password123")
	if err == nil {
		t.Fatal("expected weak password to be rejected")
	}
	if !strings.Contains(err.Error(), "invalid password") {
		t.Errorf("error = %q, want it to mention invalid password", err.Error())
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "" || hash == password {
		t.Fatal("hash should be non-empty and differ from the plaintext")
	}

	if err := ComparePassword(hash, password); err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}

	if err := ComparePassword(hash, "WrongPassword123!"); err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") should fail")
	}
}
