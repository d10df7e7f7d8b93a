package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResponseMetaCollectsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/hit", func(c *gin.Context) {
		assert.Nil(t, ResponseMeta(c))
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ResponseMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hit", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cache_hit":true}`, w.Body.String())
}

func TestSetCacheHitWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	SetCacheHit(c, false)

	assert.Equal(t, map[string]interface{}{"cache_hit": false}, ResponseMeta(c))
}
