package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/irsalhamdi/course-portal/api/web"
	"github.com/irsalhamdi/course-portal/api/weberr"
	"github.com/irsalhamdi/course-portal/core/claims"
	"github.com/irsalhamdi/course-portal/rate"
)

// RateLimit throttles callers by identity, or by remote host for anonymous
// requests. It must run after authentication.
func RateLimit(l *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			key, err := claims.Identity(ctx)
			if err != nil {
				key = "addr:" + remoteHost(r)
			}

			if !l.Check(key) {
				return weberr.TooManyRequests(errors.New("rate limit exceeded for " + key))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
