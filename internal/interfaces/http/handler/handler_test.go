package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/application/generation"
	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/interfaces/http/dto"
	apperrors "z-novel-writer/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type chapterStore struct{ chapters map[string]*entity.Chapter }

func (s *chapterStore) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	return s.chapters[id], nil
}
func (s *chapterStore) Update(context.Context, *entity.Chapter) error { return nil }
func (s *chapterStore) ListByProject(_ context.Context, projectID string) ([]*entity.Chapter, error) {
	out := make([]*entity.Chapter, 0, len(s.chapters))
	for _, ch := range s.chapters {
		if ch.ProjectID == projectID {
			out = append(out, ch)
		}
	}
	return out, nil
}
func (s *chapterStore) UpdateEmbedding(context.Context, string, []float32, int) error { return nil }

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	r.ServeHTTP(w, req)
	return w.ResponseRecorder
}

// closeNotifyRecorder 供 SSE 流式响应使用
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)
	h.SetVersion("v1.2.3")
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)

	w := perform(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"v1.2.3"`)

	w = perform(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var ready readinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "missing", ready.Checks["postgres"].Status)
	assert.Equal(t, "disabled", ready.Checks["milvus"].Status)

	w = perform(r, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerationHandler_ProviderNotConfigured(t *testing.T) {
	h := NewGenerationHandler(generation.NewOrchestrator(generation.Dependencies{}, generation.Options{}))
	r := gin.New()
	r.POST("/v1/chapters/:cid/generate", h.Generate)
	r.POST("/v1/chapters/:cid/generate/stream", h.StreamGenerate)

	w := perform(r, http.MethodPost, "/v1/chapters/c1/generate", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.CodeProviderNotConfigured), resp.Error.ErrorCode)

	w = perform(r, http.MethodPost, "/v1/chapters/c1/generate/stream", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	connected := strings.Index(body, "event:connected")
	failed := strings.Index(body, "event:error")
	require.GreaterOrEqual(t, connected, 0)
	require.Greater(t, failed, connected)
	assert.Contains(t, body, `"code":"4011"`)
}

func TestRetrievalHandler(t *testing.T) {
	store := &chapterStore{chapters: map[string]*entity.Chapter{
		"c0": {ID: "c0", ProjectID: "p1", OrderIndex: 0, Title: "拜师", Summary: "林远拜师"},
		"c1": {ID: "c1", ProjectID: "p1", OrderIndex: 1, Title: "下山"},
	}}
	h := NewRetrievalHandler(retrieval.NewEngine(nil, store, nil, retrieval.Options{}))
	r := gin.New()
	r.POST("/v1/projects/:pid/retrieve", h.Retrieve)

	w := perform(r, http.MethodPost, "/v1/projects/p1/retrieve", `{"chapter_id":"c1","query":"林远的师父"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ok dto.Response[dto.RetrieveResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, string(retrieval.ModeRecent), ok.Data.Mode)
	assert.NotEmpty(t, ok.Data.FallbackReason)
	require.Len(t, ok.Data.Contexts, 1)
	assert.Equal(t, "c0", ok.Data.Contexts[0].ChapterID)
	require.NotNil(t, ok.Data.Debug)

	w = perform(r, http.MethodPost, "/v1/projects/p1/retrieve", `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/v1/projects/p1/retrieve", `{"chapter_id":"nope","query":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.CodeChapterNotFound), decodeError(t, w).Error.ErrorCode)
}

func TestRunCheck(t *testing.T) {
	ctx := context.Background()
	failing := func(context.Context) error { return errors.New("connection refused") }
	healthy := func(context.Context) error { return nil }

	assert.Equal(t, "ok", runCheck(ctx, dependencyCheck{name: "postgres", required: true, check: healthy}).Status)

	res := runCheck(ctx, dependencyCheck{name: "redis", required: true, check: failing})
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "connection refused", res.Error)

	// 语义检索可退化，Milvus 故障只标记为 degraded
	assert.Equal(t, "degraded", runCheck(ctx, dependencyCheck{name: "milvus", check: failing}).Status)
	assert.Equal(t, "disabled", runCheck(ctx, dependencyCheck{name: "milvus"}).Status)
	assert.Equal(t, "missing", runCheck(ctx, dependencyCheck{name: "postgres", required: true}).Status)
}
