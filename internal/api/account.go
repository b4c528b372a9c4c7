package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ignite/guestcomms/internal/pkg/httputil"
)

// AccountHeader carries the owning account of every /api request. It is set
// by the host application's gateway after authentication.
const AccountHeader = "X-Account-ID"

type accountKey struct{}

// requireAccount rejects requests without an account and stores it on the
// request context.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct := strings.TrimSpace(r.Header.Get(AccountHeader))
		if acct == "" {
			httputil.Unauthorized(w, "missing "+AccountHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	})
}

// accountID returns the account set by requireAccount.
func accountID(r *http.Request) string {
	acct, _ := r.Context().Value(accountKey{}).(string)
	return acct
}

// requireBearer guards a route with a static bearer token. An empty token
// leaves the route open, which is how local cron setups run it.
func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.Unauthorized(w, "invalid tick token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
