package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goCredential "github.com/MrEthical07/goCredential"
)

type credentialContextKey struct{}

// CredentialFromContext returns the verified credential injected by [Guard].
func CredentialFromContext(ctx context.Context) (*goCredential.CredentialInfo, bool) {
	info, ok := ctx.Value(credentialContextKey{}).(*goCredential.CredentialInfo)
	return info, ok
}

// Guard returns middleware that authenticates each request with the engine.
//
// The secret is read from the Authorization header as a Bearer value, falling
// back to the X-API-Key header. Requests that present no secret or fail
// verification receive 401 with no detail about the cause. On success the
// verified [goCredential.CredentialInfo] is injected into the request context
// for [CredentialFromContext] and downstream scope checks.
func Guard(engine *goCredential.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			secret, ok := requestSecret(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goCredential.WithClientIP(r.Context(), clientIP(r))
			ctx = goCredential.WithUserAgent(ctx, r.UserAgent())

			info, err := engine.Verify(ctx, secret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, credentialContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestSecret(r *http.Request) (string, bool) {
	if secret, ok := bearerSecret(r.Header.Get("Authorization")); ok {
		return secret, true
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	return "", false
}

func bearerSecret(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	secret := value[len(bearer):]
	if secret == "" {
		return "", false
	}

	return secret, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
