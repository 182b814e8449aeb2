package middleware

import (
	"context"
	"net/http"

	"github.com/gin728/ginblog/internal/session"
	users "github.com/gin728/ginblog/internal/user"
)

// SessionCookieName is the cookie carrying the raw session token.
const SessionCookieName = "session"

// GatewayUserHeader is set by a trusted upstream gateway for requests that
// carry no session cookie. It is only consulted as a fallback.
const GatewayUserHeader = "X-User-Id"

type ContextKey string

const UserIDKey ContextKey = "userID"

// LoadAuthenticatedUser validates any session cookie on the request and
// stashes the user in the context. The cookie is re-set on every hit so the
// browser expiry tracks sliding renewal. Requests without a valid session
// pass through unauthenticated.
func LoadAuthenticatedUser(sessions *session.Manager, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, user, err := sessions.Validate(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    cookie.Value,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   secureCookies,
				Expires:  sess.ExpiresAt,
			})

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, users.UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthenticatedUser(r.Context()) == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	val := ctx.Value(users.UserKey)
	if val == nil {
		return nil
	}
	user, ok := val.(*users.User)
	if !ok {
		return nil
	}
	return user
}

// CallerIdentity resolves who is making the request, in fixed priority
// order: the session user loaded by LoadAuthenticatedUser, then the trusted
// gateway header. API handlers that mutate state call this and nothing else.
func CallerIdentity(r *http.Request) (string, bool) {
	if user := GetAuthenticatedUser(r.Context()); user != nil {
		return user.ID, true
	}
	if id := r.Header.Get(GatewayUserHeader); id != "" {
		return id, true
	}
	return "", false
}
