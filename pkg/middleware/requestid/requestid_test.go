package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, inbound string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	w, seen := do(t, "client-abc-123")

	assert.Equal(t, "client-abc-123", seen)
	assert.Equal(t, "client-abc-123", w.Header().Get("X-Request-ID"))
}

func TestMiddlewareReplacesMalformedID(t *testing.T) {
	for _, inbound := range []string{
		"",
		"has spaces in it",
		"control\x00char",
		strings.Repeat("a", maxInboundLen+1),
	} {
		w, seen := do(t, inbound)

		require.NotEmpty(t, seen)
		assert.NotEqual(t, inbound, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, "generated id is a uuid")
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	}
}
