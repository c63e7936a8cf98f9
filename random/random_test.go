package random

import (
	"bytes"
	"strings"
	"testing"
)

func TestStringSecure(t *testing.T) {
	a, err := StringSecure(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := StringSecure(32)
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32 characters, got %d and %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("two tokens collided: %s", a)
	}
	for _, r := range a {
		if !strings.ContainsRune(charset, r) {
			t.Fatalf("unexpected character %q in %s", r, a)
		}
	}
}

func TestStringFromShortReader(t *testing.T) {
	if _, err := StringFrom(bytes.NewReader(nil), 8); err == nil {
		t.Fatal("expected an error from an exhausted reader")
	}
}
