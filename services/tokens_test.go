package services

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Setenv("SYSMANAGE_JWT_SECRET", "test-signing-secret")
	if err := InitTokens(); err != nil {
		t.Fatal(err)
	}

	raw, err := MintAccessToken("user-123", "alice")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := VerifyAccessToken(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-123" || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Setenv("SYSMANAGE_JWT_SECRET", "test-signing-secret")
	if err := InitTokens(); err != nil {
		t.Fatal(err)
	}
	for _, raw := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := VerifyAccessToken(raw); err == nil {
			t.Errorf("VerifyAccessToken(%q) accepted", raw)
		}
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Setenv("SYSMANAGE_JWT_SECRET", "key-one")
	if err := InitTokens(); err != nil {
		t.Fatal(err)
	}
	raw, err := MintAccessToken("user-123", "alice")
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("SYSMANAGE_JWT_SECRET", "key-two")
	if err := InitTokens(); err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyAccessToken(raw); err == nil {
		t.Error("token signed with old key accepted")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Setenv("SYSMANAGE_JWT_SECRET", "test-signing-secret")
	if err := InitTokens(); err != nil {
		t.Fatal(err)
	}

	old := AccessTokenTTL
	AccessTokenTTL = -5 * time.Minute
	defer func() { AccessTokenTTL = old }()

	raw, err := MintAccessToken("user-123", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyAccessToken(raw); err == nil {
		t.Error("expired token accepted")
	}
}

func TestRandHexLength(t *testing.T) {
	if got := RandHex(64); len(got) != 64 {
		t.Errorf("RandHex(64) length = %d", len(got))
	}
	if RandHex(32) == RandHex(32) {
		t.Error("RandHex not random")
	}
}
