package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "middleware-secret"})
	utils.SetRedis(nil)
	m.Run()
}

func sessionEcho(c *gin.Context) {
	sess := SessionFrom(c)
	c.JSON(http.StatusOK, gin.H{"id": sess.AccountID, "role": sess.Role})
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/x", AuthRequired(), sessionEcho)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "garbage").Code)

	token, err := utils.GenerateToken(4, "dana", "user", time.Hour)
	require.NoError(t, err)
	w := serve(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":4,"role":"user"}`, w.Body.String())

	claims, err := utils.ParseToken(token)
	require.NoError(t, err)
	utils.BlacklistToken(claims.ID, claims.ExpiresAt.Time)
	assert.Equal(t, http.StatusUnauthorized, serve(r, token).Code)
}

func TestAuthStoresOnlySessionAndClaims(t *testing.T) {
	var keys []string
	r := gin.New()
	r.GET("/x", AuthRequired(), func(c *gin.Context) {
		for k := range c.Keys {
			keys = append(keys, k)
		}
		c.Status(http.StatusNoContent)
	})

	token, err := utils.GenerateToken(7, "erin", "user", time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, serve(r, token).Code)
	assert.ElementsMatch(t, []string{ContextSessionKey, ContextClaimsKey}, keys)
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	r := gin.New()
	r.GET("/x", OptionalAuth(), sessionEcho)

	w := serve(r, "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"role":""}`, w.Body.String())
}

func TestAdminRequired(t *testing.T) {
	r := gin.New()
	r.GET("/x", AuthRequired(), AdminRequired(), sessionEcho)

	user, err := utils.GenerateToken(1, "u", "user", time.Hour)
	require.NoError(t, err)
	admin, err := utils.GenerateToken(2, "a", "admin", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, serve(r, user).Code)
	assert.Equal(t, http.StatusOK, serve(r, admin).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(4), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// burst is half the per-minute budget
	assert.Equal(t, http.StatusNoContent, serve(r, "").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "").Code)
}

type visitLog struct {
	mu  sync.Mutex
	ids []*uint
}

func (v *visitLog) RecordVisit(_ context.Context, id *uint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids = append(v.ids, id)
	return nil
}

func TestVisitRecorder(t *testing.T) {
	log := &visitLog{}
	r := gin.New()
	api := r.Group("/api/v1", OptionalAuth(), VisitRecorder(log, zap.NewNop()))
	api.GET("/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/posts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	api.GET("/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	token, err := utils.GenerateToken(9, "v", "user", time.Hour)
	require.NoError(t, err)
	for _, path := range []string{"/api/v1/posts", "/api/v1/posts/1", "/api/v1/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil))

	require.Len(t, log.ids, 2)
	require.NotNil(t, log.ids[0])
	assert.Equal(t, uint(9), *log.ids[0])
	assert.Nil(t, log.ids[1])
}

var _ VisitStore = (*services.StatsService)(nil)
