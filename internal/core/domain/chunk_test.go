package domain

import "testing"

func TestComputeChunkKey_OrderIndependent(t *testing.T) {
	a := ComputeChunkKey([]string{"https://a.example.com/1", "https://a.example.com/2", "https://a.example.com/3"})
	b := ComputeChunkKey([]string{"https://a.example.com/3", "https://a.example.com/1", "https://a.example.com/2"})

	if a != b {
		t.Errorf("expected identical keys, got %s and %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected key length 16, got %d", len(a))
	}
}

func TestComputeChunkKey_DifferentMembers(t *testing.T) {
	a := ComputeChunkKey([]string{"x", "y"})
	b := ComputeChunkKey([]string{"x", "z"})
	if a == b {
		t.Error("expected different keys for different member sets")
	}
}

func TestComputeChunkKey_KnownValue(t *testing.T) {
	// sha256("a\nb") truncated to 16 hex characters
	got := ComputeChunkKey([]string{"b", "a"})
	if got != "7e18f737311b2dc3" {
		t.Errorf("expected 7e18f737311b2dc3, got %s", got)
	}
}

func TestNewChunk_CopiesInput(t *testing.T) {
	in := []string{"b", "a"}
	c := NewChunk(in)
	in[0] = "mutated"

	if c.Resources[0] != "b" {
		t.Errorf("expected chunk to keep its own copy, got %v", c.Resources)
	}
	if c.Key != ComputeChunkKey([]string{"a", "b"}) {
		t.Errorf("unexpected key %s", c.Key)
	}
}
