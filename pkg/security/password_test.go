package security_test

import (
	"testing"

	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty string")
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestWalletPinRoundTrip(t *testing.T) {
	cfg := testPasswordConfig()

	hash, err := security.HashWalletPin("1234", cfg)
	if err != nil {
		t.Fatalf("HashWalletPin returned error: %v", err)
	}

	ok, err := security.VerifyWalletPin("1234", hash)
	if err != nil {
		t.Fatalf("VerifyWalletPin returned error: %v", err)
	}
	if !ok {
		t.Fatal("VerifyWalletPin failed for the correct pin")
	}

	ok, err = security.VerifyWalletPin("4321", hash)
	if err != nil {
		t.Fatalf("VerifyWalletPin returned error: %v", err)
	}
	if ok {
		t.Fatal("VerifyWalletPin returned true for the wrong pin")
	}
}

func TestValidateWalletPin(t *testing.T) {
	for _, pin := range []string{"", "123", "12345", "123a", "abcd"} {
		if err := security.ValidateWalletPin(pin); err == nil {
			t.Fatalf("expected validation error for pin %q", pin)
		}
	}
	if err := security.ValidateWalletPin("0000"); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
