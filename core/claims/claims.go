// Package claims carries the authenticated caller identity through a
// request context.
package claims

import (
	"context"
	"errors"
)

type Claims struct {
	Identity string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

// Identity returns the caller identity, failing when none was
// authenticated.
func Identity(ctx context.Context) (string, error) {
	c, err := Get(ctx)
	if err != nil {
		return "", err
	}
	if c.Identity == "" {
		return "", errors.New("empty identity in context")
	}
	return c.Identity, nil
}

// WithIdentity is a shorthand for Set with only an identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return Set(ctx, Claims{Identity: identity})
}
