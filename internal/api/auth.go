package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator resolves the user behind a request. The API never
// implements identity itself; it only asks whether a user is present
// and gates the protected routes on the answer.
type Authenticator interface {
	// CurrentUser returns the user identity for the request, or
	// ok=false when the request is unauthenticated.
	CurrentUser(r *http.Request) (user string, ok bool)
}

// StaticTokenAuthenticator accepts a single bearer token. Suitable for
// single-user deployments; anything multi-tenant plugs in its own
// Authenticator.
type StaticTokenAuthenticator struct {
	Token string
}

func (a StaticTokenAuthenticator) CurrentUser(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || a.Token == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return "", false
	}
	return "bearer", true
}

// authMiddleware rejects unauthenticated requests with a bare 401 and
// an empty body, and stores the user in the request context otherwise.
func authMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.CurrentUser(r)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
