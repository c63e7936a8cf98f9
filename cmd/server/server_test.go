package main

import (
	"errors"
	"testing"

	"github.com/irsalhamdi/course-portal/config"
	"github.com/irsalhamdi/course-portal/core/auth"
)

func TestNewVerifier(t *testing.T) {
	_, err := newVerifier(config.Auth{})
	if !errors.Is(err, errNoIdentitySource) {
		t.Fatalf("expected an unconfigured identity source to be refused, got %v", err)
	}

	v, err := newVerifier(config.Auth{IdentityHeader: "X-Forwarded-User"})
	if err != nil {
		t.Fatal(err)
	}
	if h, ok := v.(auth.Header); !ok || h != "X-Forwarded-User" {
		t.Fatalf("expected a header verifier on X-Forwarded-User, got %#v", v)
	}
}
