package middleware

import (
	"net/http"

	goCredential "github.com/MrEthical07/goCredential"
)

// RequireScopes returns middleware that rejects requests whose credential does
// not carry every named scope. It must run after [Guard]; a request with no
// injected credential is rejected. Refresh tokens never satisfy scope checks.
func RequireScopes(engine *goCredential.Engine, scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := CredentialFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			if !engine.HasAllScopes(*info, scopes...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
