package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin728/ginblog/internal/auth"
	"github.com/gin728/ginblog/internal/blog"
	"github.com/gin728/ginblog/internal/httputil"
	"github.com/gin728/ginblog/internal/media"
	"github.com/gin728/ginblog/internal/middleware"
	"github.com/gin728/ginblog/internal/service"
	"github.com/gin728/ginblog/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (app *application) apiRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/posts", app.handleListPosts)
	r.Post("/posts", app.handleSavePost)
	r.Get("/posts/{slug}", app.handleGetPost)
	r.Get("/posts/{slug}/comments", app.handleListComments)
	r.Patch("/posts/{slug}/status", app.handlePostStatus)
	r.Delete("/posts/{slug}", app.handleDeletePost)

	r.Get("/music", app.handleListMusic)
	r.Post("/music", app.handleAddTrack)

	r.Post("/comments", app.handleAddComment)
	r.Delete("/comments/{id}", app.handleDeleteComment)

	r.Get("/search", app.handleSearch)

	r.Post("/profile/use-provider-info", app.handleUseProviderInfo)
	r.Post("/admin/reset-users", app.handleResetUsers)

	return r
}

// parseTimestamp accepts the datetime-local strings the editor submits, plus
// RFC 3339 for API callers. Unparseable values fall back to "now" upstream.
func parseTimestamp(value string) *int64 {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return utils.Ptr(t.UnixMilli())
		}
	}
	return nil
}

func (app *application) handleSavePost(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CallerIdentity(r); !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	title := r.Form.Get("title")
	content := r.Form.Get("content")
	slug := r.Form.Get("slug")
	if title == "" || content == "" || slug == "" {
		httputil.JSONError(w, http.StatusBadRequest, "title, content and slug are required", nil)
		return
	}

	post, err := app.posts.SavePost(r.Context(), service.PostInput{
		ID:          r.Form.Get("id"),
		Title:       title,
		Slug:        slug,
		Content:     content,
		PublishedAt: parseTimestamp(r.Form.Get("publishedAt")),
		UpdatedAt:   parseTimestamp(r.Form.Get("updatedAt")),
	})
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to save post", err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "id": post.ID})
}

func (app *application) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := app.posts.ListLatest(r.Context())
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to list posts", err)
		return
	}
	if posts == nil {
		posts = []*blog.Post{}
	}
	httputil.JSON(w, http.StatusOK, posts)
}

func (app *application) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := app.posts.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, service.ErrPostNotFound) {
		httputil.JSONError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to load post", err)
		return
	}
	httputil.JSON(w, http.StatusOK, post)
}

func (app *application) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CallerIdentity(r); !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Action != "publish" && body.Action != "unpublish" {
		httputil.JSONError(w, http.StatusBadRequest, "action must be publish or unpublish", nil)
		return
	}

	err := app.posts.SetPublished(r.Context(), chi.URLParam(r, "slug"), body.Action == "publish")
	if errors.Is(err, service.ErrPostNotFound) {
		httputil.JSONError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to update post status", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (app *application) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CallerIdentity(r); !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	err := app.posts.DeletePost(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, service.ErrPostNotFound) {
		httputil.JSONError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to delete post", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type trackEmbed struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type trackResponse struct {
	*blog.Track
	Embed trackEmbed `json:"embed"`
}

func (app *application) handleListMusic(w http.ResponseWriter, r *http.Request) {
	tracks, err := app.music.ListAll(r.Context())
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to list tracks", err)
		return
	}

	response := make([]trackResponse, 0, len(tracks))
	for _, track := range tracks {
		embed := media.GetEmbedInfo(track.URL)
		response = append(response, trackResponse{
			Track: track,
			Embed: trackEmbed{Type: embed.Type.String(), URL: embed.URL},
		})
	}
	httputil.JSON(w, http.StatusOK, response)
}

func (app *application) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CallerIdentity(r); !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	title := r.Form.Get("title")
	artist := r.Form.Get("artist")
	url := r.Form.Get("url")
	if title == "" || artist == "" || url == "" {
		httputil.JSONError(w, http.StatusBadRequest, "title, artist and url are required", nil)
		return
	}

	track := &blog.Track{
		ID:        uuid.New().String(),
		Title:     title,
		Artist:    artist,
		URL:       url,
		Cover:     utils.StringOrNil(r.Form.Get("cover")),
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := app.music.Insert(r.Context(), track); err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to add track", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "id": track.ID})
}

func (app *application) handleListComments(w http.ResponseWriter, r *http.Request) {
	post, err := app.posts.GetPost(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, service.ErrPostNotFound) {
		httputil.JSONError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to load post", err)
		return
	}

	comments, err := app.comments.ListByPost(r.Context(), post.ID)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to list comments", err)
		return
	}
	if comments == nil {
		comments = []*blog.Comment{}
	}
	httputil.JSON(w, http.StatusOK, comments)
}

func (app *application) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.CallerIdentity(r)
	if !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	postID := r.Form.Get("post_id")
	content := r.Form.Get("content")
	if postID == "" || content == "" {
		httputil.JSONError(w, http.StatusBadRequest, "post_id and content are required", nil)
		return
	}

	comment := &blog.Comment{
		ID:        uuid.New().String(),
		UserID:    userID,
		PostID:    postID,
		Content:   content,
		ParentID:  utils.StringOrNil(r.Form.Get("parent_id")),
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := app.comments.Insert(r.Context(), comment); err != nil {
		// Foreign keys make an unknown post a constraint failure.
		httputil.JSONError(w, http.StatusBadRequest, "Invalid post or user", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true, "id": comment.ID})
}

func (app *application) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.CallerIdentity(r)
	if !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	comment, err := app.comments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to load comment", err)
		return
	}
	if comment == nil {
		httputil.JSONError(w, http.StatusNotFound, "Comment not found", nil)
		return
	}
	if comment.UserID != userID {
		httputil.JSONError(w, http.StatusForbidden, "Forbidden", nil)
		return
	}

	if err := app.comments.Delete(r.Context(), comment.ID); err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to delete comment", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (app *application) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len(q) < 2 {
		httputil.JSON(w, http.StatusOK, []any{})
		return
	}

	results, err := app.index.Query(r.Context(), q, 5)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Search failed", err)
		return
	}
	httputil.JSON(w, http.StatusOK, results)
}

func (app *application) handleUseProviderInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.CallerIdentity(r)
	if !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var body struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := app.orchestrator.UseProviderInfo(r.Context(), userID, body.Provider)
	if errors.Is(err, auth.ErrProviderNotLinked) {
		httputil.JSONError(w, http.StatusBadRequest, body.Provider+" account not linked", nil)
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to switch provider info", err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"username": user.Username,
		"avatar":   user.Avatar,
	})
}

func (app *application) handleResetUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.CallerIdentity(r)
	if !ok {
		httputil.JSONError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	caller, err := app.users.GetUser(r.Context(), userID)
	if err != nil || !caller.IsAdmin {
		httputil.JSONError(w, http.StatusForbidden, "Forbidden", err)
		return
	}

	// Sessions reference users; they go first.
	if err := app.sessions.InvalidateAll(r.Context()); err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to delete sessions", err)
		return
	}
	if err := app.users.DeleteAllUsers(r.Context()); err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "Failed to delete users", err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All users and sessions deleted",
	})
}
