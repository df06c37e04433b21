package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/config"
	"z-novel-writer/internal/interfaces/http/dto"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext())
	var gotProject, gotChapter, gotRequest string
	r.POST("/v1/projects/:pid/chapters/:cid", func(c *gin.Context) {
		gotProject = c.GetString(string(logger.ProjectIDKey))
		gotChapter = c.GetString(string(logger.ChapterIDKey))
		gotRequest = c.GetString("request_id")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p1/chapters/c9", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", gotRequest)
	assert.Equal(t, "p1", gotProject)
	assert.Equal(t, "c9", gotChapter)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/chapters/c9", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("scene index out of range") })
	r.GET("/stream", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "event:connected\n\n")
		panic("after headers")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.CodeInternalError), resp.Error.ErrorCode)

	// 已开始推送的事件流不再追加 JSON
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "event:connected\n\n", w.Body.String())
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.CORSConfig
		origin      string
		wantOrigin  string
		credentials string
	}{
		{name: "open by default", origin: "http://writer.local", wantOrigin: "*"},
		{
			name:        "explicit origin allows credentials",
			cfg:         config.CORSConfig{AllowedOrigins: []string{"http://writer.local"}},
			origin:      "http://writer.local",
			wantOrigin:  "http://writer.local",
			credentials: "true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.cfg))
			r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.credentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestMetricsUnmatchedRoute(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
