package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMetaCollectsValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, Meta(c))
	SetCacheHit(c, true)
	SetMeta(c, "total", 3)

	assert.Equal(t, map[string]interface{}{"cache_hit": true, "total": 3}, Meta(c))
}
