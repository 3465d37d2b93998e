package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ugc-forge/app/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOriginList(t *testing.T) {
	o := NewOriginList([]string{"https://a.example.com"})
	assert.True(t, o.Allowed("https://a.example.com"))
	assert.False(t, o.Allowed("https://b.example.com"))
	assert.False(t, o.Allowed(""))

	o.Replace([]string{"*"})
	assert.True(t, o.Allowed("https://b.example.com"))
}

func TestRateLimitWithoutLimiterAdmits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RateLimit(nil, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
