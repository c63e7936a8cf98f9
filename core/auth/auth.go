// Package auth establishes who is calling the HTTP API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/course-portal/api/web"
	"github.com/irsalhamdi/course-portal/api/weberr"
	"github.com/irsalhamdi/course-portal/core/claims"
)

// ErrNoCredentials is returned by a Verifier when the request carries no
// credentials at all. Such requests continue anonymously.
var ErrNoCredentials = errors.New("no credentials")

type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (claims.Claims, error)
}

// OIDC accepts bearer ID tokens issued by an OpenID Connect provider. The
// token subject becomes the caller identity.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the provider at issuer and verifies tokens minted for
// clientID.
func NewOIDC(ctx context.Context, issuer, clientID string) (*OIDC, error) {
	prov, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering provider %q: %w", issuer, err)
	}
	return NewOIDCVerifier(prov.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCVerifier(v *oidc.IDTokenVerifier) *OIDC {
	return &OIDC{verifier: v}
}

func (o *OIDC) Verify(ctx context.Context, r *http.Request) (claims.Claims, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return claims.Claims{}, ErrNoCredentials
	}

	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || raw == "" {
		return claims.Claims{}, errors.New("authorization header is not a bearer token")
	}

	tok, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		return claims.Claims{}, fmt.Errorf("verifying id token: %w", err)
	}
	if tok.Subject == "" {
		return claims.Claims{}, errors.New("id token has no subject")
	}

	return claims.Claims{Identity: tok.Subject}, nil
}

// Header trusts the identity a fronting gateway put in the named header.
type Header string

func (h Header) Verify(ctx context.Context, r *http.Request) (claims.Claims, error) {
	id := strings.TrimSpace(r.Header.Get(string(h)))
	if id == "" {
		return claims.Claims{}, ErrNoCredentials
	}
	return claims.Claims{Identity: id}, nil
}

// Authenticate stores the verified caller in the request context. Requests
// without credentials pass through; the operations that need an identity
// reject them.
func Authenticate(v Verifier) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := v.Verify(ctx, r)
			switch {
			case errors.Is(err, ErrNoCredentials):
				return handler(ctx, w, r)
			case err != nil:
				return weberr.NotAuthorized(err)
			}

			ctx = claims.Set(ctx, clm)
			return handler(ctx, w, r.WithContext(ctx))
		}
		return h
	}
	return m
}
