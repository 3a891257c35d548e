package utils

import (
	"strings"
	"testing"
)

func TestCapabilityToken_RoundTrip(t *testing.T) {
	token, err := GenerateCapabilityToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("token %q is not URL-safe", token)
	}

	hash := HashCapabilityToken(token)
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hash))
	}
	if !VerifyCapabilityToken(token, hash) {
		t.Fatal("verify failed against the token's own hash")
	}
}

func TestCapabilityToken_VerifyRejectsWrongToken(t *testing.T) {
	a, _ := GenerateCapabilityToken()
	b, _ := GenerateCapabilityToken()
	if a == b {
		t.Fatal("two generated tokens collided")
	}
	if VerifyCapabilityToken(b, HashCapabilityToken(a)) {
		t.Fatal("verify accepted a different token")
	}
	if VerifyCapabilityToken("", HashCapabilityToken(a)) {
		t.Fatal("verify accepted an empty token")
	}
}

func TestCapabilityTokenPrefix(t *testing.T) {
	if got := CapabilityTokenPrefix("abcdefghij"); got != "abcdefgh" {
		t.Fatalf("prefix = %q, want %q", got, "abcdefgh")
	}
	if got := CapabilityTokenPrefix("abc"); got != "abc" {
		t.Fatalf("short token prefix = %q, want %q", got, "abc")
	}
}
