package auth

import (
	"testing"
	"time"

	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "tinysprouts-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	now := time.Now().UTC()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: "user-42",
		Phone:  "9876543210",
		Name:   "Asha",
		JTI:    "jti-1",
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
	if claims.Phone != "9876543210" {
		t.Fatalf("unexpected phone %q", claims.Phone)
	}
	if claims.ID != "jti-1" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	payload := AccessTokenPayload{UserID: "user-1", Phone: "9876543210"}

	if _, err := MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 5}, now, payload); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "x", ExpirationMinutes: 5}, now, payload); err == nil {
		t.Fatal("expected error for missing issuer")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "x", Issuer: "y"}, now, payload); err == nil {
		t.Fatal("expected error for non-positive expiration")
	}
	if _, err := MintAccessToken(testJWTConfig(), now, AccessTokenPayload{Phone: "9876543210"}); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	past := time.Now().UTC().Add(-2 * time.Hour)

	signed, err := MintAccessToken(cfg, past, AccessTokenPayload{UserID: "user-1", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	claims, err := ParseAccessTokenAllowExpired(cfg, signed)
	if err != nil {
		t.Fatalf("allow-expired parse failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: "user-1", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}
