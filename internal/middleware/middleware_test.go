package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/medsurvey/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func claimsRouter(tokens *service.TokenService, variant string) *gin.Engine {
	r := gin.New()
	r.GET("/form", RequireFormToken(tokens), RequireCurrentVariant(variant), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).FormID)
	})
	return r
}

func TestRequireFormToken(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	token, _, err := tokens.Issue("form-1", "medical-survey")
	require.NoError(t, err)
	r := claimsRouter(tokens, "medical-survey")

	tests := []struct {
		name   string
		target string
		header string
		status int
		body   string
	}{
		{name: "bearer header", target: "/form", header: "Bearer " + token, status: http.StatusOK, body: "form-1"},
		{name: "query token", target: "/form?token=" + token, status: http.StatusOK, body: "form-1"},
		{name: "missing", target: "/form", status: http.StatusUnauthorized, body: "TOKEN_REQUIRED"},
		{name: "garbage", target: "/form", header: "Bearer nope", status: http.StatusUnauthorized, body: "TOKEN_INVALID"},
		{name: "wrong scheme", target: "/form", header: "Basic " + token, status: http.StatusUnauthorized, body: "TOKEN_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireCurrentVariant_RejectsOtherVariant(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	token, _, err := tokens.Issue("form-1", "old-survey")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/form", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	claimsRouter(tokens, "medical-survey").ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), "FORM_EXPIRED")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/submit", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		return w
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	assert.Equal(t, http.StatusNoContent, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusNoContent, do().Code)
}

func TestBrotli(t *testing.T) {
	long := strings.Repeat("answer ", 400)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/long", func(c *gin.Context) { c.String(http.StatusOK, long) })
	r.GET("/short", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("compresses long bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/long", nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
		body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, long, string(body))
	})

	t.Run("passes short bodies through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/short", nil)
		req.Header.Set("Accept-Encoding", "br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("ignores clients without br", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/long", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, long, w.Body.String())
	})
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
