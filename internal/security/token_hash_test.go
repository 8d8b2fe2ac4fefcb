package security

import "testing"

func TestHashToken_Deterministic(t *testing.T) {
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	if h1 != h2 {
		t.Errorf("HashToken not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestHashToken_DifferentInputs(t *testing.T) {
	if HashToken("token-a") == HashToken("token-b") {
		t.Error("different tokens produced the same hash")
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("some-token")
	if !TokenHashEqual("some-token", stored) {
		t.Error("TokenHashEqual should match for the same token")
	}
	if TokenHashEqual("other-token", stored) {
		t.Error("TokenHashEqual should not match for a different token")
	}
}
