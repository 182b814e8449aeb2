package main

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin728/ginblog/internal/auth"
	"github.com/gin728/ginblog/internal/cache"
	"github.com/gin728/ginblog/internal/db"
	"github.com/gin728/ginblog/internal/middleware"
	"github.com/gin728/ginblog/internal/search"
	"github.com/gin728/ginblog/internal/service"
	"github.com/gin728/ginblog/internal/session"
	"github.com/gin728/ginblog/internal/store"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testEmbedding(_ context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	h := fnv.New32a()
	for _, ch := range text {
		h.Reset()
		h.Write([]byte{byte(ch)})
		vec[h.Sum32()%dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// providerStub stands in for the OAuth issuers: one shared token endpoint and
// per-provider profile endpoints.
func providerStub() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/discord/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"999","username":"ginny","avatar":"abc123"}`))
	})
	mux.HandleFunc("/github/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":123,"login":"ginny-gh","avatar_url":"https://example.com/a.png"}`))
	})
	return mux
}

type testApp struct {
	app    *application
	router http.Handler
	db     *sqlx.DB
	cache  *cache.Cache
	posts  *store.PostStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	c, err := cache.Open(t.TempDir())
	require.NoError(t, err, "Failed to open cache")
	t.Cleanup(func() { c.Close() })

	ix, err := search.Open("", testEmbedding)
	require.NoError(t, err)

	issuer := httptest.NewServer(providerStub())
	t.Cleanup(issuer.Close)

	stubEndpoint := oauth2.Endpoint{
		AuthURL:  issuer.URL + "/auth",
		TokenURL: issuer.URL + "/token",
	}
	discord := auth.NewDiscordProvider("client-id", "client-secret", issuer.URL+"/callback")
	discord.Config.Endpoint = stubEndpoint
	discord.ProfileURL = issuer.URL + "/discord/profile"

	github := auth.NewGithubProvider("client-id", "client-secret", issuer.URL+"/callback")
	github.Config.Endpoint = stubEndpoint
	github.ProfileURL = issuer.URL + "/github/profile"

	userStore := store.NewUserStore(database)
	postStore := store.NewPostStore(database)

	app := &application{
		db:           database,
		sessions:     session.NewManager(store.NewSessionStore(database), userStore),
		providers:    map[string]*auth.Provider{"discord": discord, "github": github},
		orchestrator: auth.NewOrchestrator(userStore),
		users:        userStore,
		posts:        service.NewPostService(database, postStore, c, ix),
		music:        store.NewMusicStore(database),
		comments:     store.NewCommentStore(database),
		index:        ix,
	}

	return &testApp{app: app, router: newRouter(app), db: database, cache: c, posts: postStore}
}

// doCallback simulates the provider redirect back to us, with the flow
// cookies a real browser would carry from the login start.
func (ta *testApp) doCallback(provider string, extra ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/login/"+provider+"/callback?code=test-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: provider + "_oauth_state", Value: "test-state"})
	if ta.app.providers[provider].UsesPKCE {
		req.AddCookie(&http.Cookie{Name: provider + "_code_verifier", Value: oauth2.GenerateVerifier()})
	}
	for _, c := range extra {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			found = c
		}
	}
	require.NotNil(t, found, "expected a session cookie")
	return found
}

func countRows(t *testing.T, database *sqlx.DB, table string) int {
	t.Helper()

	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM "+table))
	return count
}

func TestLoginCallbackCreatesUserAndSession(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, 1, countRows(t, ta.db, "users"))
	var discordID, username string
	require.NoError(t, ta.db.QueryRow("SELECT discord_id, username FROM users").Scan(&discordID, &username))
	assert.Equal(t, "999", discordID)
	assert.Equal(t, "ginny", username)

	cookie := sessionCookie(t, rec)
	_, user, err := ta.app.sessions.Validate(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ginny", user.Username)
}

func TestSecondLoginReusesUser(t *testing.T) {
	ta := newTestApp(t)

	first := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, first.Code)
	second := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, countRows(t, ta.db, "users"), "same external id must map to the same user")
	assert.Equal(t, 2, countRows(t, ta.db, "sessions"), "each login gets its own session")
}

func TestLoginCallbackLinksProviderToSession(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	linkRec := ta.doCallback("github", cookie)
	require.Equal(t, http.StatusOK, linkRec.Code, linkRec.Body.String())

	require.Equal(t, 1, countRows(t, ta.db, "users"), "linking must not create a second user")
	var discordID, githubID string
	require.NoError(t, ta.db.QueryRow("SELECT discord_id, github_id FROM users").Scan(&discordID, &githubID))
	assert.Equal(t, "999", discordID)
	assert.Equal(t, "123", githubID)
}

func TestLoginCallbackStateMismatch(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/login/discord/callback?code=test-code&state=wrong", nil)
	req.AddCookie(&http.Cookie{Name: "discord_oauth_state", Value: "test-state"})
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Body.String(), "state failures carry no detail")
	assert.Equal(t, 0, countRows(t, ta.db, "users"))
}

func TestLoginStartRedirectsToProvider(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/login/discord?redirect_to=/posts/hello", nil)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", location.Path)
	assert.NotEmpty(t, location.Query().Get("state"))
	assert.NotEmpty(t, location.Query().Get("code_challenge"))

	cookies := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, location.Query().Get("state"), cookies["discord_oauth_state"])
	assert.NotEmpty(t, cookies["discord_code_verifier"])
	assert.Equal(t, "/posts/hello", cookies["login_redirect"])
}

func TestLoginStartUnknownProvider(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/login/myspace", nil)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavePostRequiresAuth(t *testing.T) {
	ta := newTestApp(t)

	form := url.Values{"title": {"Hello"}, "slug": {"hello"}, "content": {"world"}}
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	assert.Equal(t, 0, countRows(t, ta.db, "posts"))
}

func TestSavePostWithGatewayHeader(t *testing.T) {
	ta := newTestApp(t)

	form := url.Values{"title": {"Hello"}, "slug": {"hello"}, "content": {"world"}}
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.GatewayUserHeader, "editor-1")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.ID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/posts/hello", nil)
	getRec := httptest.NewRecorder()
	ta.router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	var cached map[string]any
	hit, err := ta.cache.Get(service.CacheKey("hello"), &cached)
	require.NoError(t, err)
	assert.True(t, hit, "saved post should be cached")
}

func TestUnpublishPost(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	_, err := ta.app.posts.SavePost(ctx, service.PostInput{Title: "Hello", Slug: "hello", Content: "world"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/posts/hello/status", strings.NewReader(`{"action":"unpublish"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.GatewayUserHeader, "editor-1")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	post, err := ta.posts.GetBySlug(ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Nil(t, post.PublishedAt)

	var cached map[string]any
	hit, err := ta.cache.Get(service.CacheKey("hello"), &cached)
	require.NoError(t, err)
	assert.False(t, hit, "unpublish must invalidate the cache entry")
}

func TestGetPostNotFound(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Post not found"}`, rec.Body.String())
}

func TestSearchShortQuery(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=a", nil)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddAndListMusic(t *testing.T) {
	ta := newTestApp(t)

	form := url.Values{
		"title":  {"Track"},
		"artist": {"Someone"},
		"url":    {"https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/music", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.GatewayUserHeader, "editor-1")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	listReq := httptest.NewRequest(http.MethodGet, "/api/music", nil)
	listRec := httptest.NewRecorder()
	ta.router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var tracks []struct {
		Title string `json:"title"`
		Embed struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"embed"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, "Track", tracks[0].Title)
	assert.Equal(t, "youtube", tracks[0].Embed.Type)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", tracks[0].Embed.URL)
}

func TestCommentLifecycle(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	login := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	post, err := ta.app.posts.SavePost(ctx, service.PostInput{Title: "Hello", Slug: "hello", Content: "world"})
	require.NoError(t, err)

	form := url.Values{"post_id": {post.ID}, "content": {"nice one"}}
	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	listReq := httptest.NewRequest(http.MethodGet, "/api/posts/hello/comments", nil)
	listRec := httptest.NewRecorder()
	ta.router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), "nice one")

	// Someone else cannot delete it.
	delReq := httptest.NewRequest(http.MethodDelete, "/api/comments/"+created.ID, nil)
	delReq.Header.Set(middleware.GatewayUserHeader, "someone-else")
	delRec := httptest.NewRecorder()
	ta.router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusForbidden, delRec.Code)

	delReq = httptest.NewRequest(http.MethodDelete, "/api/comments/"+created.ID, nil)
	delReq.AddCookie(cookie)
	delRec = httptest.NewRecorder()
	ta.router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusOK, delRec.Code)
	assert.Equal(t, 0, countRows(t, ta.db, "comments"))
}

func TestCommentOnUnknownPost(t *testing.T) {
	ta := newTestApp(t)

	form := url.Values{"post_id": {"nope"}, "content": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.GatewayUserHeader, "editor-1")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminResetRequiresAdmin(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	login := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset-users", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, countRows(t, ta.db, "users"))

	_, err := ta.db.ExecContext(ctx, "UPDATE users SET is_admin = 1")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/reset-users", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, countRows(t, ta.db, "users"))
	assert.Equal(t, 0, countRows(t, ta.db, "sessions"))
}

func TestUseProviderInfo(t *testing.T) {
	ta := newTestApp(t)

	login := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	req := httptest.NewRequest(http.MethodPost, "/api/profile/use-provider-info", strings.NewReader(`{"provider":"github"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"github account not linked"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/profile/use-provider-info", strings.NewReader(`{"provider":"discord"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "ginny")
}

func TestProfilePage(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code, "anonymous visitors are sent home")

	login := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, login.Code)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(sessionCookie(t, login))
	rec = httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ginny")
	assert.Contains(t, rec.Body.String(), "Link github")
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doCallback("discord")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	logoutRec := httptest.NewRecorder()
	ta.router.ServeHTTP(logoutRec, req)
	assert.Equal(t, http.StatusFound, logoutRec.Code)

	_, user, err := ta.app.sessions.Validate(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Nil(t, user, "session must be gone after logout")
}
