package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/models"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/storage"
	"github.com/rodeway/board/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := config.AppConfig{
		JWTSecret:          "router-test-secret",
		TokenTTLHours:      1,
		RateLimitPerMinute: 10000,
		GinMode:            "test",
		DBDriver:           "sqlite",
		DBPath:             filepath.Join(dir, "board.db"),
		LogLevel:           "silent",
		ListCacheSeconds:   30,
		UploadMaxMB:        1,
		AllowedOrigins:     []string{"*"},
	}
	config.Set(cfg)
	utils.SetRedis(nil)

	db, err := config.InitDatabase(cfg, models.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	blobs, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	svc := Services{
		Accounts:   services.NewAccountService(db, utils.BcryptHasher{Cost: bcrypt.MinCost}),
		Content:    services.NewContentService(db),
		Moderation: services.NewModerationService(db),
		Stats:      services.NewStatsService(db),
		Uploads:    services.NewUploadService(db, blobs, 1<<20),
	}
	_, err = svc.Accounts.BootstrapAdmin(context.Background(), "admin", "admin-password")
	require.NoError(t, err)

	return &testServer{t: t, engine: SetupRouter(cfg, svc)}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) (int, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func (s *testServer) signup(username string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username, "password": "pw-" + username})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	return s.login(username, "pw-"+username)
}

func (s *testServer) createPost(token string, body gin.H) uint {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/posts", token, body)
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var data struct {
		Post models.Post `json:"post"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Post.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)

	code, env = s.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40400, env.Code)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("alice")

	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "alice", "password": "another"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 40900, env.Code)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40106, env.Code)

	code, env = s.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40101, env.Code)

	code, env = s.do(http.MethodPatch, "/api/v1/auth/profile", token, gin.H{"nickname": "<b>Al</b>", "signature": "hi"})
	require.Equal(t, http.StatusOK, code, env.Message)
	p := decode[services.Profile](t, env.Data)
	assert.Equal(t, "Al", p.Nickname)
	assert.Equal(t, "hi", p.Signature)
	assert.Equal(t, "Newbie", p.Rank)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", p.ID), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", decode[services.Profile](t, env.Data).Username)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("alice")

	code, _ := s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40104, env.Code)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")

	code, env := s.do(http.MethodPost, "/api/v1/posts", "", gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, code, env.Message)

	id := s.createPost(alice, gin.H{"title": "hello <script>x</script>", "content": "<p>world</p><script>alert(1)</script>"})

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), "", nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[services.PostView](t, env.Data)
	assert.Equal(t, "<p>world</p>", view.Content)
	assert.NotContains(t, view.Title, "<script>")
	assert.EqualValues(t, 1, view.Views)

	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", id), bob, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", id), bob, gin.H{"content": "nice"})
	require.Equal(t, http.StatusOK, code, env.Message)

	missingParent := 999
	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", id), bob, gin.H{"content": "x", "parent_id": missingParent})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40431, env.Code)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/comments", id), "", nil)
	require.Equal(t, http.StatusOK, code)
	comments := decode[struct {
		Items []services.CommentView `json:"items"`
	}](t, env.Data)
	require.Len(t, comments.Items, 1)
	assert.Equal(t, "bob", comments.Items[0].Author.Username)

	code, env = s.do(http.MethodGet, "/api/v1/auth/me", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 12, decode[services.Profile](t, env.Data).Points)

	code, env = s.do(http.MethodGet, "/api/v1/notifications?unread=1", alice, nil)
	require.Equal(t, http.StatusOK, code)
	notes := decode[struct {
		Items  []models.Notification `json:"items"`
		Unread int64                 `json:"unread"`
	}](t, env.Data)
	require.Len(t, notes.Items, 1)
	assert.EqualValues(t, 1, notes.Unread)

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", notes.Items[0].ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodPost, "/api/v1/notifications/read-all", alice, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", id), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", id), alice, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40420, env.Code)
}

func TestSecretPostOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	id := s.createPost(alice, gin.H{"title": "diary", "content": "private", "is_secret": true})

	code, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), "", nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[services.PostView](t, env.Data)
	assert.True(t, view.Redacted)
	assert.Empty(t, view.Content)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), alice, nil)
	require.Equal(t, http.StatusOK, code)
	view = decode[services.PostView](t, env.Data)
	assert.False(t, view.Redacted)
	assert.Equal(t, "private", view.Content)
	assert.EqualValues(t, 2, view.Views)
}

func TestListPostsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	admin := s.login("admin", "admin-password")
	first := s.createPost(alice, gin.H{"title": "first", "content": "a"})
	second := s.createPost(alice, gin.H{"title": "second", "content": "b"})
	notice := s.createPost(admin, gin.H{"title": "rules", "content": "c", "is_notice": true})

	code, env := s.do(http.MethodGet, "/api/v1/posts?sort=newest&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[services.Page[services.PostSummary]](t, env.Data)
	require.Len(t, page.Items, 2)
	assert.Equal(t, notice, page.Items[0].ID)
	assert.Equal(t, second, page.Items[1].ID)
	assert.Equal(t, 2, page.TotalPages)

	code, env = s.do(http.MethodGet, "/api/v1/posts?search=first", "", nil)
	require.Equal(t, http.StatusOK, code)
	page = decode[services.Page[services.PostSummary]](t, env.Data)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first, page.Items[0].ID)

	tom := s.createPost(alice, gin.H{"title": "Tom & Jerry", "content": "cat <b>and</b> mouse"})
	for _, term := range []string{"Tom+%26+Jerry", "%26", "Jerry"} {
		code, env = s.do(http.MethodGet, "/api/v1/posts?search="+term, "", nil)
		require.Equal(t, http.StatusOK, code)
		page = decode[services.Page[services.PostSummary]](t, env.Data)
		require.Len(t, page.Items, 1, "search %q", term)
		assert.Equal(t, tom, page.Items[0].ID)
	}

	for _, query := range []string{"page=2305843009213693953&page_size=4", "search=e&page=2305843009213693953&page_size=4"} {
		code, env = s.do(http.MethodGet, "/api/v1/posts?"+query, "", nil)
		require.Equal(t, http.StatusOK, code, query)
		page = decode[services.Page[services.PostSummary]](t, env.Data)
		assert.Empty(t, page.Items, query)
	}

	code, env = s.do(http.MethodGet, "/api/v1/posts?page=99", "", nil)
	require.Equal(t, http.StatusOK, code)
	page = decode[services.Page[services.PostSummary]](t, env.Data)
	assert.Empty(t, page.Items)

	code, env = s.do(http.MethodGet, "/api/v1/posts?sort=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40000, env.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	admin := s.login("admin", "admin-password")

	code, env := s.do(http.MethodGet, "/api/v1/auth/me", alice, nil)
	require.Equal(t, http.StatusOK, code)
	aliceID := decode[services.Profile](t, env.Data).ID

	code, _ = s.do(http.MethodPost, "/api/v1/reports", alice, gin.H{"target_type": "post", "target_id": 5, "reason": "spam"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/api/v1/admin/reports", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 40301, env.Code)

	code, env = s.do(http.MethodGet, "/api/v1/admin/reports", admin, nil)
	require.Equal(t, http.StatusOK, code)
	reports := decode[struct {
		Items []models.Report `json:"items"`
	}](t, env.Data)
	require.Len(t, reports.Items, 1)
	assert.Equal(t, models.TargetPost, reports.Items[0].TargetType)

	rules := s.createPost(admin, gin.H{"title": "rules", "content": "be kind"})

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/ban", aliceID), admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", rules), alice, nil)
	assert.Equal(t, http.StatusForbidden, code, "an old token of a banned account cannot like")
	assert.Equal(t, 40302, env.Code)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "pw-alice"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 40302, env.Code)

	code, env = s.do(http.MethodPost, "/api/v1/posts", alice, gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusForbidden, code, "an old token of a banned account cannot write")
	assert.Equal(t, 40302, env.Code)

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/unban", aliceID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	s.login("alice", "pw-alice")
}

func TestUploadAndServeBlob(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("attachment body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := s.send(req, alice)
	require.Equal(t, http.StatusOK, code, env.Message)
	up := decode[struct {
		Handle string `json:"handle"`
		URL    string `json:"url"`
	}](t, env.Data)
	require.NotEmpty(t, up.Handle)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, up.URL, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment body", w.Body.String())

	code, env = s.do(http.MethodGet, "/api/v1/blobs/attachments/missing.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40450, env.Code)
}

func TestStatsCountVisits(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	id := s.createPost(alice, gin.H{"title": "t", "content": "c"})

	s.do(http.MethodGet, "/api/v1/posts", "", nil)
	s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), alice, nil)
	s.do(http.MethodGet, "/api/v1/posts/999", "", nil)

	code, env := s.do(http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	sum := decode[services.Summary](t, env.Data)
	assert.EqualValues(t, 2, sum.Users, "admin and alice")
	assert.EqualValues(t, 1, sum.Posts)
	assert.EqualValues(t, 2, sum.Visits, "the failed read is not counted")
	assert.EqualValues(t, 2, sum.VisitsToday)
}
