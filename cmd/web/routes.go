package main

import (
	"net/http"

	"github.com/gin728/ginblog/internal/auth"
	"github.com/gin728/ginblog/internal/httputil"
	"github.com/gin728/ginblog/internal/middleware"
	"github.com/gin728/ginblog/internal/search"
	"github.com/gin728/ginblog/internal/service"
	"github.com/gin728/ginblog/internal/session"
	"github.com/gin728/ginblog/internal/store"
	"github.com/gin728/ginblog/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
)

type application struct {
	db            *sqlx.DB
	sessions      *session.Manager
	providers     map[string]*auth.Provider
	orchestrator  *auth.Orchestrator
	users         *store.UserStore
	posts         *service.PostService
	music         *store.MusicStore
	comments      *store.CommentStore
	index         *search.Index
	secureCookies bool
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoadAuthenticatedUser(app.sessions, app.secureCookies))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		posts, err := app.posts.ListLatest(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to load posts", err)
			return
		}
		user := middleware.GetAuthenticatedUser(r.Context())
		views.Render(w, r, views.HomePage(user, posts))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/profile", func(w http.ResponseWriter, req *http.Request) {
			views.Render(w, req, views.ProfilePage(middleware.GetAuthenticatedUser(req.Context())))
		})
	})

	r.Get("/login/{provider}", app.handleLoginStart)
	r.Get("/login/{provider}/callback", app.handleLoginCallback)
	r.Post("/logout", app.handleLogout)

	r.Mount("/api", app.apiRouter())

	return r
}
