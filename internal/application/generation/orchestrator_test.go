package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/domain/entity"
	apperrors "z-novel-writer/pkg/errors"
)

type testEnv struct {
	orch     *Orchestrator
	model    *streamModel
	chapters *fakeChapters
	queue    *recordingQueue
}

func frames(n int) []*entity.SceneFrame {
	out := make([]*entity.SceneFrame, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, &entity.SceneFrame{
			ChapterID:     "c1",
			Index:         i,
			Purpose:       fmt.Sprintf("场景%d：林远继续前行", i),
			FocalEntities: []string{"林远"},
		})
	}
	return out
}

func newTestEnv(sceneCount int, opts Options, scripts ...sceneScript) *testEnv {
	m := newStreamModel(scripts...)
	chapters := &fakeChapters{chapters: map[string]*entity.Chapter{
		"c0": {ID: "c0", ProjectID: "p1", OrderIndex: 0, Title: "拜师", ContentText: "林远拜入青云门下。", Summary: "林远拜师", Version: 1},
		"c1": {ID: "c1", ProjectID: "p1", OrderIndex: 1, Title: "下山", Status: entity.ChapterStatusDraft, Version: 1},
	}}
	outlines := &fakeOutlines{byParent: map[string]*entity.Outline{
		"c1": {
			ProjectID: "p1",
			Kind:      entity.OutlineKindChapter,
			ParentID:  ptr("c1"),
			Payload: entity.OutlinePayload{
				Title:         "下山",
				OneLiner:      "林远奉命下山历练",
				Beats:         []string{"林远辞别师父", "山道遇伏"},
				FocalEntities: []string{"林远"},
			},
		},
	}}
	queue := &recordingQueue{}
	if opts.Provider == "" {
		opts.Provider = "primary"
	}
	orch := NewOrchestrator(Dependencies{
		Projects: &fakeProjects{projects: map[string]*entity.Project{"p1": {ID: "p1", Title: "青云志"}}},
		Chapters: chapters,
		Outlines: outlines,
		Characters: &fakeCharacters{chars: []*entity.Character{
			{Name: "林远", Role: entity.CharacterRoleProtagonist},
		}},
		Factory:    &fakeFactory{model: m},
		Decomposer: &staticDecomposer{frames: frames(sceneCount)},
		Queue:      queue,
	}, opts)
	return &testEnv{orch: orch, model: m, chapters: chapters, queue: queue}
}

type fakeCharacters struct{ chars []*entity.Character }

func (r *fakeCharacters) ListByProject(context.Context, string) ([]*entity.Character, error) {
	return r.chars, nil
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
			return out
		}
	}
}

func typesOf(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func waitStarted(t *testing.T, m *streamModel, idx int) {
	t.Helper()
	for {
		select {
		case got := <-m.started:
			if got == idx {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("scene %d was never requested", idx)
		}
	}
}

func TestGenerate_EventOrderAndPersistence(t *testing.T) {
	env := newTestEnv(2, Options{},
		sceneScript{chunks: []string{"林远", "拔剑。"}},
		sceneScript{chunks: []string{"苏晴赶到。"}, usage: &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}},
	)

	events := collect(t, env.orch.Generate(context.Background(), "c1"))
	assert.Equal(t, []EventType{
		EventConnected,
		EventProgress,
		EventScenesDecomposed,
		EventSceneStart, EventSceneChunk, EventSceneChunk, EventSceneCompleted,
		EventSceneStart, EventSceneChunk, EventSceneCompleted,
		EventCompleted,
	}, typesOf(events))

	genID := events[0].GenerationID
	require.NotEmpty(t, genID)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, genID, ev.GenerationID)
		assert.Equal(t, "c1", ev.ChapterID)
	}

	decomposed := events[2]
	require.Len(t, decomposed.Scenes, 2)
	assert.Equal(t, 0, decomposed.Scenes[0].Index)
	assert.Equal(t, 0, *events[3].SceneIndex)
	assert.Equal(t, 1, *events[7].SceneIndex)

	completedScene := events[6]
	assert.Equal(t, 5, completedScene.WordCount)
	require.NotNil(t, completedScene.Passed)
	assert.False(t, *completedScene.Passed)

	last := events[len(events)-1]
	require.NotNil(t, last.Summary)
	assert.Equal(t, 2, last.Summary.ScenesTotal)
	assert.Equal(t, 2, last.Summary.ScenesCompleted)
	assert.Zero(t, last.Summary.ScenesFailed)
	assert.Equal(t, 12, last.Summary.WordCount)
	assert.Equal(t, 100, last.Summary.PromptTokens)
	assert.Equal(t, 20, last.Summary.CompletionTokens)

	ch, _ := env.chapters.GetByID(context.Background(), "c1")
	assert.Equal(t, "林远拔剑。\n\n苏晴赶到。", ch.ContentText)
	assert.Equal(t, 2, ch.Version)
	assert.Equal(t, entity.ChapterStatusReview, ch.Status)
	require.NotNil(t, ch.GenerationMetadata)
	assert.Equal(t, "primary", ch.GenerationMetadata.Provider)
	assert.Equal(t, []entity.ChapterStatus{entity.ChapterStatusGenerating, entity.ChapterStatusReview}, env.chapters.statusHistory())
	assert.Equal(t, 1, env.queue.count())
	assert.Equal(t, retrieval.JobTypeChapterVectorize, env.queue.jobs[0])
}

func TestGenerate_SceneFailureContinues(t *testing.T) {
	env := newTestEnv(3, Options{},
		sceneScript{chunks: []string{"甲。"}},
		sceneScript{openErr: errors.New("upstream 502")},
		sceneScript{chunks: []string{"丙。"}},
	)

	events := collect(t, env.orch.Generate(context.Background(), "c1"))
	var failed []Event
	for _, ev := range events {
		if ev.Type == EventSceneFailed {
			failed = append(failed, ev)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, 1, *failed[0].SceneIndex)
	assert.Contains(t, failed[0].Error, "upstream 502")

	last := events[len(events)-1]
	require.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, 2, last.Summary.ScenesCompleted)
	assert.Equal(t, 1, last.Summary.ScenesFailed)
	assert.Equal(t, 3, env.model.callCount())

	ch, _ := env.chapters.GetByID(context.Background(), "c1")
	assert.Equal(t, "甲。\n\n丙。", ch.ContentText)
}

func TestGenerate_AllScenesFailedKeepsContent(t *testing.T) {
	env := newTestEnv(2, Options{},
		sceneScript{openErr: errors.New("boom")},
		sceneScript{openErr: errors.New("boom")},
	)
	env.chapters.chapters["c1"].ContentText = "旧正文"

	events := collect(t, env.orch.Generate(context.Background(), "c1"))
	last := events[len(events)-1]
	require.Equal(t, EventCompleted, last.Type)
	assert.Zero(t, last.Summary.ScenesCompleted)
	assert.Equal(t, 2, last.Summary.ScenesFailed)

	ch, _ := env.chapters.GetByID(context.Background(), "c1")
	assert.Equal(t, "旧正文", ch.ContentText)
	assert.Equal(t, 1, ch.Version)
	assert.Equal(t, entity.ChapterStatusDraft, ch.Status)
	assert.Zero(t, env.queue.count())
}

func TestGenerate_ConnectivityTimeoutFailsScene(t *testing.T) {
	env := newTestEnv(2, Options{ConnectivityTimeout: 50 * time.Millisecond},
		sceneScript{block: true},
		sceneScript{chunks: []string{"乙。"}},
	)

	events := collect(t, env.orch.Generate(context.Background(), "c1"))
	var failed *Event
	for i := range events {
		if events[i].Type == EventSceneFailed {
			failed = &events[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, 0, *failed.SceneIndex)
	assert.Contains(t, failed.Error, "no response within")

	last := events[len(events)-1]
	require.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, 1, last.Summary.ScenesCompleted)
}

func TestGenerate_StalledStreamFailsScene(t *testing.T) {
	env := newTestEnv(2, Options{ChunkIdleTimeout: 50 * time.Millisecond},
		sceneScript{chunks: []string{"半句"}, stall: true},
		sceneScript{chunks: []string{"乙。"}},
	)

	start := time.Now()
	events := collect(t, env.orch.Generate(context.Background(), "c1"))
	assert.Less(t, time.Since(start), 2*time.Second)

	var failed *Event
	var deltas []string
	for i := range events {
		switch events[i].Type {
		case EventSceneFailed:
			failed = &events[i]
		case EventSceneChunk:
			deltas = append(deltas, events[i].Delta)
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, 0, *failed.SceneIndex)
	assert.Contains(t, failed.Error, "no chunk within")
	assert.Equal(t, []string{"半句", "乙。"}, deltas)

	last := events[len(events)-1]
	require.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, 1, last.Summary.ScenesCompleted)
	assert.Equal(t, 1, last.Summary.ScenesFailed)

	ch, _ := env.chapters.GetByID(context.Background(), "c1")
	assert.Equal(t, "乙。", ch.ContentText)
}

func TestGenerate_FatalBeforeLoop(t *testing.T) {
	t.Run("no factory", func(t *testing.T) {
		orch := NewOrchestrator(Dependencies{Decomposer: &staticDecomposer{frames: frames(1)}}, Options{})
		events := collect(t, orch.Generate(context.Background(), "c1"))
		require.Equal(t, []EventType{EventConnected, EventError}, typesOf(events))
		assert.Equal(t, string(apperrors.CodeProviderNotConfigured), events[1].Code)
	})

	t.Run("provider unavailable", func(t *testing.T) {
		env := newTestEnv(1, Options{})
		env.orch.deps.Factory = &fakeFactory{err: errors.New("unknown provider")}
		_, err := env.orch.GenerateSync(context.Background(), "c1")
		assert.True(t, apperrors.Is(err, apperrors.CodeProviderNotConfigured))
		assert.Zero(t, env.model.callCount())
	})

	t.Run("chapter not found", func(t *testing.T) {
		env := newTestEnv(1, Options{})
		events := collect(t, env.orch.Generate(context.Background(), "missing"))
		require.Equal(t, []EventType{EventConnected, EventError}, typesOf(events))
		assert.Equal(t, string(apperrors.CodeChapterNotFound), events[1].Code)
		assert.True(t, apperrors.Is(events[1].Err(), apperrors.CodeChapterNotFound))
	})

	t.Run("decompose failure", func(t *testing.T) {
		env := newTestEnv(1, Options{})
		env.orch.deps.Decomposer = &staticDecomposer{err: errors.New("no beats")}
		events := collect(t, env.orch.Generate(context.Background(), "c1"))
		last := events[len(events)-1]
		assert.Equal(t, EventError, last.Type)
		assert.Equal(t, string(apperrors.CodeGenerationFailed), last.Code)
		assert.Zero(t, env.model.callCount())
	})

	t.Run("zero scenes", func(t *testing.T) {
		env := newTestEnv(0, Options{})
		events := collect(t, env.orch.Generate(context.Background(), "c1"))
		last := events[len(events)-1]
		assert.Equal(t, EventError, last.Type)
		assert.ErrorIs(t, last.Err(), ErrNoScenes)
	})
}

func TestGenerate_CancelStopsFurtherScenes(t *testing.T) {
	env := newTestEnv(3, Options{},
		sceneScript{chunks: []string{"甲。"}},
		sceneScript{block: true},
	)
	ctx, cancel := context.WithCancel(context.Background())
	ch := env.orch.Generate(ctx, "c1")

	waitStarted(t, env.model, 1)
	cancel()

	events := collect(t, ch)
	for _, ev := range events {
		assert.False(t, ev.Type.Terminal(), "unexpected terminal event %s", ev.Type)
	}
	assert.Equal(t, 2, env.model.callCount())

	history := env.chapters.statusHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, entity.ChapterStatusDraft, history[len(history)-1])
	got, _ := env.chapters.GetByID(context.Background(), "c1")
	assert.Empty(t, got.ContentText)
	assert.Zero(t, env.queue.count())
}

func TestGenerate_RejectsConcurrentRunForSameChapter(t *testing.T) {
	env := newTestEnv(1, Options{}, sceneScript{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	first := env.orch.Generate(ctx, "c1")
	waitStarted(t, env.model, 0)

	second := collect(t, env.orch.Generate(context.Background(), "c1"))
	require.Equal(t, []EventType{EventConnected, EventError}, typesOf(second))
	assert.Equal(t, string(apperrors.CodeGenerationInProgress), second[1].Code)

	cancel()
	collect(t, first)

	// 前一次结束后同一章节可以再次生成
	res, err := env.orch.GenerateSync(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "默认场景正文。", res.Content)
}

func TestGenerateSync_SkipsFailedSceneText(t *testing.T) {
	env := newTestEnv(3, Options{},
		sceneScript{chunks: []string{"第一场。"}},
		sceneScript{chunks: []string{"半截"}, midErr: errors.New("stream reset")},
		sceneScript{chunks: []string{"第三场。"}},
	)

	res, err := env.orch.GenerateSync(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "第一场。\n\n第三场。", res.Content)
	assert.Equal(t, []int{1}, res.Failed)
	assert.Equal(t, 1, res.Summary.ScenesFailed)
	assert.Len(t, res.Scenes, 3)
	assert.NotEmpty(t, res.GenerationID)
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "短文", tailRunes("  短文 ", 10))
	got := tailRunes("一二三四五六", 3)
	assert.True(t, len([]rune(got)) > 3)
	assert.Contains(t, got, "四五六")
}

func TestRenderOutline(t *testing.T) {
	got := renderOutline(&entity.OutlinePayload{
		OneLiner:      "林远下山",
		Beats:         []string{"辞别", "遇伏"},
		ConflictFocus: "生死一线",
		ExitState:     "重伤",
	})
	assert.Equal(t, "概要：林远下山\n1. 辞别\n2. 遇伏\n核心冲突：生死一线\n结束状态：重伤", got)
}
