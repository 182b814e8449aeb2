package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin728/ginblog/internal/auth"
	"github.com/gin728/ginblog/internal/httputil"
	"github.com/gin728/ginblog/internal/middleware"
	"github.com/gin728/ginblog/internal/session"
	"github.com/gin728/ginblog/views"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

const (
	stateCookieSuffix    = "_oauth_state"
	verifierCookieSuffix = "_code_verifier"
	redirectCookieName   = "login_redirect"

	// Login-flow cookies outlive a single redirect round trip, nothing more.
	flowCookieMaxAge = 10 * 60
)

func (app *application) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   flowCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   app.secureCookies,
	})
}

func (app *application) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   app.secureCookies,
	})
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (app *application) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := app.providers[chi.URLParam(r, "provider")]
	if !ok {
		httputil.NotFound(w, "Unknown provider", nil)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		httputil.InternalServerError(w, "Failed to start login", err)
		return
	}

	verifier := ""
	if provider.UsesPKCE {
		verifier = oauth2.GenerateVerifier()
		app.setFlowCookie(w, provider.Name+verifierCookieSuffix, verifier)
	}
	app.setFlowCookie(w, provider.Name+stateCookieSuffix, state)

	redirectTo := r.URL.Query().Get("redirect_to")
	if !strings.HasPrefix(redirectTo, "/") || strings.HasPrefix(redirectTo, "//") {
		redirectTo = "/"
	}
	app.setFlowCookie(w, redirectCookieName, redirectTo)

	http.Redirect(w, r, provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (app *application) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := app.providers[chi.URLParam(r, "provider")]
	if !ok {
		httputil.NotFound(w, "Unknown provider", nil)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	storedState := cookieValue(r, provider.Name+stateCookieSuffix)
	if code == "" || state == "" || storedState == "" || state != storedState {
		slog.Warn("oauth state mismatch", "provider", provider.Name)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	verifier := ""
	if provider.UsesPKCE {
		verifier = cookieValue(r, provider.Name+verifierCookieSuffix)
		if verifier == "" {
			slog.Warn("missing code verifier", "provider", provider.Name)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	// The session present before this flow began decides between login and
	// account linking.
	var currentUserID *string
	if token := cookieValue(r, middleware.SessionCookieName); token != "" {
		if _, user, err := app.sessions.Validate(r.Context(), token); err == nil && user != nil {
			currentUserID = &user.ID
		}
	}

	oauthToken, err := provider.Exchange(r.Context(), code, verifier)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Token exchange failed", err)
		return
	}

	assertion, err := provider.FetchProfile(r.Context(), oauthToken)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to fetch user profile", err)
		return
	}

	userID, err := app.orchestrator.Authenticate(r.Context(), provider.Name, assertion, currentUserID)
	if err != nil {
		if errors.Is(err, auth.ErrProviderAlreadyLinked) {
			httputil.JSONError(w, http.StatusBadRequest, "This account is already linked to another user", err)
			return
		}
		httputil.JSONError(w, http.StatusInternalServerError, "Authentication failed", err)
		return
	}

	token, err := session.GenerateToken()
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	sess, err := app.sessions.Create(r.Context(), token, userID)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   app.secureCookies,
		Expires:  sess.ExpiresAt,
	})

	target := cookieValue(r, redirectCookieName)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		target = "/"
	}
	app.clearCookie(w, provider.Name+stateCookieSuffix)
	if provider.UsesPKCE {
		app.clearCookie(w, provider.Name+verifierCookieSuffix)
	}
	app.clearCookie(w, redirectCookieName)

	views.Render(w, r, views.RedirectPage(target))
}

func (app *application) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := cookieValue(r, middleware.SessionCookieName); token != "" {
		if err := app.sessions.Invalidate(r.Context(), token); err != nil {
			slog.Error("failed to invalidate session", "error", err)
		}
	}
	app.clearCookie(w, middleware.SessionCookieName)
	http.Redirect(w, r, "/", http.StatusFound)
}
