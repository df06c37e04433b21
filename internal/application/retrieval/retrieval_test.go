package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/domain/entity"
)

type fakeEmbedder struct {
	vec []float64
	err error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeChapterRepo struct {
	mu       sync.Mutex
	chapters map[string]*entity.Chapter
	updates  map[string]int
}

func newFakeChapterRepo(chapters ...*entity.Chapter) *fakeChapterRepo {
	r := &fakeChapterRepo{chapters: make(map[string]*entity.Chapter), updates: make(map[string]int)}
	for _, ch := range chapters {
		r.chapters[ch.ID] = ch
	}
	return r
}

func (r *fakeChapterRepo) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chapters[id], nil
}

func (r *fakeChapterRepo) Update(_ context.Context, ch *entity.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chapters[ch.ID] = ch
	return nil
}

func (r *fakeChapterRepo) ListByProject(_ context.Context, projectID string) ([]*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Chapter, 0, len(r.chapters))
	for _, ch := range r.chapters {
		if ch.ProjectID == projectID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (r *fakeChapterRepo) UpdateEmbedding(_ context.Context, id string, vector []float32, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := r.chapters[id]
	if ch == nil || version < ch.EmbeddingVersion {
		return nil
	}
	ch.Embedding = vector
	ch.EmbeddingVersion = version
	r.updates[id]++
	return nil
}

type fakeVectorStore struct {
	stored   map[string][]float32
	fetchErr error
	upserts  int
}

func (s *fakeVectorStore) EnsureChapterCollection(context.Context) error { return nil }

func (s *fakeVectorStore) UpsertChapterVectors(_ context.Context, _ string, vectors []*ChapterVector) error {
	if s.stored == nil {
		s.stored = make(map[string][]float32)
	}
	for _, v := range vectors {
		s.stored[v.ChapterID] = v.Vector
	}
	s.upserts++
	return nil
}

func (s *fakeVectorStore) FetchChapterVectors(_ context.Context, _ string, ids []string) (map[string][]float32, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make(map[string][]float32)
	for _, id := range ids {
		if v, ok := s.stored[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func chapter(id string, pos int, emb ...float32) *entity.Chapter {
	return &entity.Chapter{
		ID:          id,
		ProjectID:   "p1",
		OrderIndex:  pos,
		ContentText: "第" + id + "章正文",
		Embedding:   emb,
		Version:     1,
	}
}

func TestStructuralPool_ExcludesCurrent(t *testing.T) {
	c0 := chapter("c0", 0)
	c1 := chapter("c1", 1)

	pool := StructuralPool([]*entity.Chapter{c1, c0}, c1, 6)
	require.Len(t, pool, 1)
	assert.Equal(t, "c0", pool[0].ID)
}

func TestStructuralPool_Window(t *testing.T) {
	chapters := make([]*entity.Chapter, 0, 20)
	for i := 0; i < 20; i++ {
		chapters = append(chapters, chapter(fmt.Sprintf("c%d", i), i))
	}
	pool := StructuralPool(chapters, chapters[10], 2)
	ids := make([]string, 0, len(pool))
	for _, ch := range pool {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"c8", "c9", "c11", "c12"}, ids)
	assert.Nil(t, StructuralPool(chapters, nil, 2))
}

func TestCombinedScore(t *testing.T) {
	score, role := CombinedScore(0.9, 1.0)
	assert.InDelta(t, 0.99, score, 1e-9)
	assert.Equal(t, roleWeightHigh, role)

	score, role = CombinedScore(0.5, 0.5)
	assert.InDelta(t, 0.6, score, 1e-9)
	assert.Equal(t, roleWeightBase, role)
}

func TestCombinedScore_MonotonicInSimilarity(t *testing.T) {
	for _, recency := range []float64{0, 0.5, 1} {
		prev := -1.0
		for i := 0; i <= 100; i++ {
			s, _ := CombinedScore(float64(i)/100, recency)
			assert.GreaterOrEqual(t, s, prev)
			prev = s
		}
	}
}

func TestRankCandidates(t *testing.T) {
	pool := []*entity.Chapter{
		chapter("far", 0, 1, 0),
		chapter("near", 4, 1, 0),
		chapter("orthogonal", 3, 0, 1),
		chapter("novec", 2),
		chapter("baddim", 1, 1, 0, 0),
	}
	out := RankCandidates(context.Background(), pool, []float32{1, 0}, 5, 10, 100)

	ids := make([]string, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.ChapterID)
	}
	assert.Equal(t, []string{"near", "far", "orthogonal"}, ids)
	assert.InDelta(t, 0.5+0.3*0.8+0.24, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5+0.24, out[1].Score, 1e-9)

	top := RankCandidates(context.Background(), pool, []float32{1, 0}, 5, 1, 100)
	require.Len(t, top, 1)
	assert.Equal(t, "near", top[0].ChapterID)
}

func TestRecentContexts(t *testing.T) {
	pool := []*entity.Chapter{chapter("a", 1), chapter("b", 3), chapter("c", 2)}
	out := RecentContexts(pool, 2, 100)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ChapterID)
	assert.Equal(t, "c", out[1].ChapterID)
	assert.Equal(t, fallbackScore, out[0].Score)
	assert.Equal(t, "第4章", out[0].Label)
}

func TestBuildPromptContext(t *testing.T) {
	assert.Empty(t, BuildPromptContext(nil))
	assert.Empty(t, BuildPromptContext([]RetrievedContext{{Label: "第1章", Excerpt: "  "}}))

	got := BuildPromptContext([]RetrievedContext{
		{Label: "第1章 雨夜", Excerpt: "林远出城", Score: 0.876},
		{Label: "第2章", Excerpt: "", Score: 0.5},
		{Label: "第3章", Excerpt: "夜宿破庙", Score: 1.3},
	})
	assert.True(t, strings.HasPrefix(got, "【参考资料】\n"+promptAdvisory))
	assert.Contains(t, got, "[1] 第1章 雨夜（相关度 88%）\n林远出城")
	assert.Contains(t, got, "[2] 第3章（相关度 100%）\n夜宿破庙")
	assert.NotContains(t, got, "第2章")
}

func TestEngine_SemanticWithHydration(t *testing.T) {
	repo := newFakeChapterRepo(
		chapter("c0", 0),
		chapter("c1", 1, 0, 1),
		chapter("c2", 2),
	)
	store := &fakeVectorStore{stored: map[string][]float32{"c0": {1, 0}}}
	e := NewEngine(&fakeEmbedder{vec: []float64{1, 0}}, repo, store, Options{})

	out, err := e.Search(context.Background(), RetrieveInput{CurrentChapterID: "c2", Query: "林远"})
	require.NoError(t, err)
	assert.Equal(t, ModeSemantic, out.Mode)
	require.Len(t, out.Contexts, 2)
	assert.Equal(t, "c0", out.Contexts[0].ChapterID)
	require.NotNil(t, out.Debug)
	assert.Equal(t, 2, out.Debug.PoolSize)
	assert.Equal(t, 1, out.Debug.HydratedVectors)
	assert.NotEmpty(t, out.Prompt)
}

func TestEngine_FallsBackWhenEmbeddingFails(t *testing.T) {
	repo := newFakeChapterRepo(chapter("c0", 0), chapter("c1", 1), chapter("c2", 2))
	e := NewEngine(&fakeEmbedder{err: errors.New("timeout")}, repo, nil, Options{TopK: 1})

	out, err := e.Retrieve(context.Background(), RetrieveInput{CurrentChapterID: "c2", Query: "林远"})
	require.NoError(t, err)
	assert.Equal(t, ModeRecent, out.Mode)
	assert.Equal(t, "timeout", out.FallbackReason)
	require.Len(t, out.Contexts, 1)
	assert.Equal(t, "c1", out.Contexts[0].ChapterID)
	assert.Nil(t, out.Debug)
}

func TestEngine_NoEmbedder(t *testing.T) {
	repo := newFakeChapterRepo(chapter("c0", 0), chapter("c1", 1))
	e := NewEngine(nil, repo, nil, Options{})

	out, err := e.Retrieve(context.Background(), RetrieveInput{CurrentChapterID: "c1", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, ModeRecent, out.Mode)
	assert.Equal(t, ErrVectorDisabled.Error(), out.FallbackReason)
}

func TestEngine_HydrationFailureIsNotFatal(t *testing.T) {
	repo := newFakeChapterRepo(chapter("c0", 0, 1, 0), chapter("c1", 1), chapter("c2", 2))
	store := &fakeVectorStore{fetchErr: errors.New("milvus down")}
	e := NewEngine(&fakeEmbedder{vec: []float64{1, 0}}, repo, store, Options{})

	out, err := e.Retrieve(context.Background(), RetrieveInput{CurrentChapterID: "c1", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, ModeSemantic, out.Mode)
	require.Len(t, out.Contexts, 1)
	assert.Equal(t, "c0", out.Contexts[0].ChapterID)
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine(nil, newFakeChapterRepo(), nil, Options{})

	_, err := e.Retrieve(context.Background(), RetrieveInput{})
	assert.Error(t, err)

	_, err = e.Retrieve(context.Background(), RetrieveInput{CurrentChapterID: "missing"})
	assert.ErrorIs(t, err, ErrChapterNotFound)
}

func TestEngine_NormalizeCapsTopK(t *testing.T) {
	e := NewEngine(nil, nil, nil, Options{})
	in := e.normalize(RetrieveInput{TopK: 500, CurrentChapterID: " c1 "})
	assert.Equal(t, maxTopK, in.TopK)
	assert.Equal(t, defaultTimeWindow, in.TimeWindow)
	assert.Equal(t, "c1", in.CurrentChapterID)
}

func TestVectorizer(t *testing.T) {
	ch := chapter("c1", 0)
	ch.Version = 2
	repo := newFakeChapterRepo(ch)
	store := &fakeVectorStore{}
	v := NewVectorizer(&fakeEmbedder{vec: []float64{0.5, 0.5}}, repo, store, 0)

	// 落后于当前版本的任务被丢弃
	require.NoError(t, v.VectorizeChapter(context.Background(), VectorizeJob{ChapterID: "c1", Version: 1}))
	assert.Zero(t, store.upserts)

	require.NoError(t, v.VectorizeChapter(context.Background(), VectorizeJob{ChapterID: "c1", Version: 2}))
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, []float32{0.5, 0.5}, store.stored["c1"])
	assert.Equal(t, 2, ch.EmbeddingVersion)

	// 重复投递是幂等的
	require.NoError(t, v.VectorizeChapter(context.Background(), VectorizeJob{ChapterID: "c1", Version: 2}))
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, 1, repo.updates["c1"])
}

func TestVectorizer_Disabled(t *testing.T) {
	v := NewVectorizer(nil, newFakeChapterRepo(), nil, 0)
	assert.False(t, v.Enabled())
	assert.ErrorIs(t, v.VectorizeChapter(context.Background(), VectorizeJob{ChapterID: "c1"}), ErrVectorDisabled)
}

func TestVectorizer_MissingChapterDropped(t *testing.T) {
	v := NewVectorizer(&fakeEmbedder{vec: []float64{1}}, newFakeChapterRepo(), nil, 0)
	assert.NoError(t, v.VectorizeChapter(context.Background(), VectorizeJob{ChapterID: "gone"}))
}
