package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"homelet/api/internal/api/middleware"
	"homelet/api/internal/auth"
	"homelet/api/internal/config"
)

func setupTestEngine(t *testing.T, cfg *config.Config, withPrincipal *auth.Principal) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg)
	if withPrincipal != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyPrincipal, *withPrincipal)
			c.Next()
		})
	}
	r.Use(rateLimiter.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func get(router *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterMiddleware_LimitPerIP(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitRPS: 1, RateLimitBurst: 1}, nil)

	assert.Equal(t, http.StatusOK, get(router, "1.2.3.4:12345"))
	assert.Equal(t, http.StatusTooManyRequests, get(router, "1.2.3.4:12345"))
	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, get(router, "5.6.7.8:12345"))
}

func TestRateLimiterMiddleware_KeyedByPrincipal(t *testing.T) {
	router := setupTestEngine(t, &config.Config{RateLimitRPS: 1, RateLimitBurst: 1}, &auth.Principal{ID: 7})

	assert.Equal(t, http.StatusOK, get(router, "1.2.3.4:12345"))
	// Same user from another address shares the bucket.
	assert.Equal(t, http.StatusTooManyRequests, get(router, "9.9.9.9:12345"))
}
