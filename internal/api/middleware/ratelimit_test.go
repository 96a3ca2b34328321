package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/At4lian/editra/internal/config"
)

func setupRateLimitedEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiterMiddleware(cfg).Limit())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func get(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterBucketDrains(t *testing.T) {
	r := setupRateLimitedEngine(&config.Config{
		RateLimitBucketSize: 2,
		RateLimitRefillRate: 1,
	})

	assert.Equal(t, http.StatusOK, get(r, "1.2.3.4:12345").Code)
	assert.Equal(t, http.StatusOK, get(r, "1.2.3.4:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "1.2.3.4:12345").Code)
}

func TestRateLimiterIsPerClient(t *testing.T) {
	r := setupRateLimitedEngine(&config.Config{
		RateLimitBucketSize: 1,
		RateLimitRefillRate: 1,
	})

	assert.Equal(t, http.StatusOK, get(r, "1.2.3.4:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "1.2.3.4:12345").Code)
	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, get(r, "5.6.7.8:12345").Code)
}
