package common

import (
	"encoding/hex"
	"testing"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeRandHexString_EntropyHint(t *testing.T) {
	const n = 32
	a, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two random strings are equal, rng looks broken")
	}
}

// ---------- HashSecret ----------

func TestHashSecret_StableAndDistinct(t *testing.T) {
	h1 := HashSecret("secret-1")
	h2 := HashSecret("secret-1")
	h3 := HashSecret("secret-2")
	if h1 != h2 {
		t.Fatalf("same input must hash to the same digest")
	}
	if h1 == h3 {
		t.Fatalf("different inputs must not collide in the test vector")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars for sha256, got %d", len(h1))
	}
}
