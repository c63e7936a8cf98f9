package auth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/course-portal/api/weberr"
	"github.com/irsalhamdi/course-portal/core/auth"
	"github.com/irsalhamdi/course-portal/core/claims"
)

const (
	issuer   = "https://issuer.example.com"
	clientID = "portal"
)

func sign(t *testing.T, key *rsa.PrivateKey, payload map[string]interface{}) string {
	t.Helper()

	enc := func(v interface{}) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}

	signing := enc(map[string]string{"alg": "RS256", "typ": "JWT"}) + "." + enc(payload)
	sum := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		t.Fatal(err)
	}
	return signing + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func newVerifier(t *testing.T) (*auth.OIDC, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	ks := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	v := oidc.NewVerifier(issuer, ks, &oidc.Config{ClientID: clientID})
	return auth.NewOIDCVerifier(v), key
}

func TestOIDC(t *testing.T) {
	v, key := newVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	claimsFor := func(sub, aud string, exp time.Time) map[string]interface{} {
		return map[string]interface{}{
			"iss": issuer,
			"sub": sub,
			"aud": aud,
			"iat": time.Now().Add(-time.Minute).Unix(),
			"exp": exp.Unix(),
		}
	}
	later := time.Now().Add(time.Hour)

	tt := []struct {
		name     string
		header   string
		identity string
		noCreds  bool
	}{
		{name: "valid", header: "Bearer " + sign(t, key, claimsFor("alice", clientID, later)), identity: "alice"},
		{name: "missing", noCreds: true},
		{name: "not bearer", header: "Basic abc"},
		{name: "expired", header: "Bearer " + sign(t, key, claimsFor("alice", clientID, time.Now().Add(-time.Hour)))},
		{name: "wrong audience", header: "Bearer " + sign(t, key, claimsFor("alice", "other", later))},
		{name: "wrong key", header: "Bearer " + sign(t, other, claimsFor("alice", clientID, later))},
		{name: "no subject", header: "Bearer " + sign(t, key, claimsFor("", clientID, later))},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			clm, err := v.Verify(context.Background(), r)
			switch {
			case tc.noCreds:
				if !errors.Is(err, auth.ErrNoCredentials) {
					t.Fatalf("expected no credentials, got %v", err)
				}
			case tc.identity == "":
				if err == nil {
					t.Fatalf("expected rejection, got identity %q", clm.Identity)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if clm.Identity != tc.identity {
					t.Fatalf("expected identity %q, got %q", tc.identity, clm.Identity)
				}
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	var got string
	h := auth.Authenticate(auth.Header("X-Identity"))(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got, _ = claims.Identity(ctx)
		return nil
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Identity", " alice ")
	if err := h(r.Context(), httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if got != "alice" {
		t.Fatalf("expected identity alice, got %q", got)
	}

	got = ""
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if err := h(r.Context(), httptest.NewRecorder(), r); err != nil {
		t.Fatalf("anonymous request rejected: %v", err)
	}
	if got != "" {
		t.Fatalf("anonymous request got identity %q", got)
	}

	v, _ := newVerifier(t)
	h = auth.Authenticate(v)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		t.Fatal("handler reached with a bad token")
		return nil
	})
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")

	err := h(r.Context(), httptest.NewRecorder(), r)
	if _, status, ok := weberr.Response(err); !ok || status != http.StatusUnauthorized {
		t.Fatalf("expected a 401 response error, got %v", err)
	}
}
