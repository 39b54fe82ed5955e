package middleware

import (
	"net/http"
	"strings"

	"github.com/EmpoweredVote/memoboard/internal/logging"
)

var protectedPaths = []string{"/", "/memos", "/account", "/admin"}

const loginPath = "/login"

func isProtected(path string) bool {
	for _, p := range protectedPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// PageGate guards browser navigations. Visitors without a live session are
// sent to /login and visitors with one are sent away from it. The session is
// resolved with the same resolver that backs /api/auth/me, so a stale cookie
// is detected and cleared instead of trusted.
func PageGate(resolver SessionResolver, cookieName string, clearCookie func(http.ResponseWriter)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			protected := isProtected(path)
			onLogin := path == loginPath

			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			if token == "" {
				if protected {
					http.Redirect(w, r, loginPath, http.StatusFound)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !protected && !onLogin {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("page gate could not resolve session", "err", err)
			}
			valid := err == nil && user != nil

			switch {
			case !valid && protected:
				clearCookie(w)
				http.Redirect(w, r, loginPath, http.StatusFound)
			case !valid && onLogin:
				clearCookie(w)
				next.ServeHTTP(w, r)
			case valid && onLogin:
				http.Redirect(w, r, "/", http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
