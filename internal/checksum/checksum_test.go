package checksum

import "testing"

func TestSum(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	c := Sum([]byte("world"))
	if a != b {
		t.Error("same input should hash equal")
	}
	if a == c {
		t.Error("different input should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hex sha-256 length = %d, want 64", len(a))
	}
}

func TestCanonical_KeyOrderIndependent(t *testing.T) {
	a, err := Canonical(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonical(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("canonical hash should not depend on key order")
	}
}
