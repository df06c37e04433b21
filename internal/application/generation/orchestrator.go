package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/application/story/selection"
	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/internal/workflow/chain"
	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
	"z-novel-writer/pkg/tracer"
)

const (
	defaultConnectivityTimeout = 30 * time.Second
	defaultChunkIdleTimeout    = 60 * time.Second
	defaultRecentChapters      = 3
	defaultContextTokenBudget  = 1500
	defaultSettingTokenBudget  = 1000
	defaultEventBuffer         = 16
	defaultMaxSettings         = 8
	previousSceneTailRunes     = 800
	sceneSeparator             = "\n\n"
)

// Options 生成参数
type Options struct {
	Provider            string
	Model               string
	Temperature         float64
	MaxTokensPerScene   int
	ConnectivityTimeout time.Duration
	// ChunkIdleTimeout 两个流式分片之间允许的最长间隔
	ChunkIdleTimeout time.Duration
	RecentChapters      int
	ContextTokenBudget  int
	SettingTokenBudget  int
	CharacterCap        int
	CharacterFloor      int
	EventBuffer         int
	RetrievalTopK       int
}

// Dependencies 协作方；Retrieval 与 Queue 可为 nil
type Dependencies struct {
	Projects   repository.ProjectRepository
	Chapters   repository.ChapterRepository
	Outlines   repository.OutlineRepository
	Characters repository.CharacterRepository
	Settings   repository.SettingRepository

	Factory         workflowport.ChatModelFactory
	ChapterSelector *selection.ChapterSelector
	SettingSelector *selection.SettingSelector
	Retrieval       *retrieval.Engine
	Decomposer      Decomposer
	Checker         RuleChecker
	Queue           TaskQueue
}

// Orchestrator 逐场景生成编排器。
// 同一章节内场景严格按序生成；不同章节的生成互不影响，同一章节同时只允许一个运行。
type Orchestrator struct {
	deps    Dependencies
	opts    Options
	scene   *chain.SceneChain
	running sync.Map
}

// NewOrchestrator 创建编排器
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.ConnectivityTimeout <= 0 {
		opts.ConnectivityTimeout = defaultConnectivityTimeout
	}
	if opts.ChunkIdleTimeout <= 0 {
		opts.ChunkIdleTimeout = defaultChunkIdleTimeout
	}
	if opts.RecentChapters <= 0 {
		opts.RecentChapters = defaultRecentChapters
	}
	if opts.ContextTokenBudget <= 0 {
		opts.ContextTokenBudget = defaultContextTokenBudget
	}
	if opts.SettingTokenBudget <= 0 {
		opts.SettingTokenBudget = defaultSettingTokenBudget
	}
	if opts.CharacterCap <= 0 {
		opts.CharacterCap = defaultCharacterCap
	}
	if opts.CharacterFloor <= 0 {
		opts.CharacterFloor = defaultCharacterFloor
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if deps.Checker == nil {
		deps.Checker = NewDefaultRuleChecker()
	}
	if deps.ChapterSelector == nil {
		deps.ChapterSelector = selection.NewChapterSelector(nil, selection.DefaultParams())
	}
	if deps.SettingSelector == nil {
		deps.SettingSelector = selection.NewSettingSelector(nil, selection.DefaultParams())
	}
	var sc *chain.SceneChain
	if deps.Factory != nil {
		sc = chain.NewSceneChain(deps.Factory)
	}
	return &Orchestrator{deps: deps, opts: opts, scene: sc}
}

// Generate 启动一次章节生成，返回事件流；终止事件之后通道关闭。
// 调用方取消 ctx 即视为断开，之后不再发起新的模型调用。
func (o *Orchestrator) Generate(ctx context.Context, chapterID string) <-chan Event {
	r := &run{
		o:            o,
		ch:           make(chan Event, o.opts.EventBuffer),
		generationID: uuid.NewString(),
		chapterID:    strings.TrimSpace(chapterID),
		start:        time.Now(),
	}
	go r.execute(ctx)
	return r.ch
}

// Result 非流式调用的结果
type Result struct {
	GenerationID string      `json:"generation_id"`
	ChapterID    string      `json:"chapter_id"`
	Content      string      `json:"content"`
	Summary      Summary     `json:"summary"`
	Scenes       []SceneInfo `json:"scenes"`
	Failed       []int       `json:"failed_scenes,omitempty"`
}

// GenerateSync 消费完整事件流；终止于 error 时返回对应错误
func (o *Orchestrator) GenerateSync(ctx context.Context, chapterID string) (*Result, error) {
	res := &Result{ChapterID: chapterID}
	texts := make(map[int]*strings.Builder)
	failed := make(map[int]bool)
	for ev := range o.Generate(ctx, chapterID) {
		res.GenerationID = ev.GenerationID
		switch ev.Type {
		case EventScenesDecomposed:
			res.Scenes = ev.Scenes
		case EventSceneChunk:
			b, ok := texts[*ev.SceneIndex]
			if !ok {
				b = &strings.Builder{}
				texts[*ev.SceneIndex] = b
			}
			b.WriteString(ev.Delta)
		case EventSceneFailed:
			failed[*ev.SceneIndex] = true
			res.Failed = append(res.Failed, *ev.SceneIndex)
		case EventCompleted:
			if ev.Summary != nil {
				res.Summary = *ev.Summary
			}
			res.Content = joinScenes(texts, failed)
			return res, nil
		case EventError:
			if ev.err != nil {
				return nil, ev.err
			}
			return nil, apperrors.New(apperrors.ErrorCode(ev.Code), ev.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrGenerationFailed.WithDetail("event stream closed without terminal event")
}

func joinScenes(texts map[int]*strings.Builder, failed map[int]bool) string {
	idx := make([]int, 0, len(texts))
	for i := range texts {
		if !failed[i] {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		if s := strings.TrimSpace(texts[i].String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sceneSeparator)
}

// run 单次生成的状态
type run struct {
	o            *Orchestrator
	ch           chan Event
	seq          int
	generationID string
	chapterID    string
	start        time.Time

	project  *entity.Project
	chapter  *entity.Chapter
	outline  *entity.OutlinePayload
	prior    []*entity.Chapter
	outlines map[string]*entity.OutlinePayload
	chars    []*entity.Character
	settings []*entity.Setting
	corpus   string

	prevStatus entity.ChapterStatus

	promptTokens     int
	completionTokens int
}

// emit 发送事件；调用方已断开时返回 false
func (r *run) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	r.seq++
	ev.Seq = r.seq
	ev.GenerationID = r.generationID
	ev.ChapterID = r.chapterID
	ev.Timestamp = time.Now()
	select {
	case r.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *run) fail(ctx context.Context, err error) {
	appErr := apperrors.AsAppError(toAppError(err))
	metrics.GenerationRunsTotal.WithLabelValues("error").Inc()
	logger.Error(ctx, "chapter generation failed", err)
	r.emit(ctx, Event{
		Type:  EventError,
		Code:  string(appErr.Code),
		Error: err.Error(),
		err:   appErr,
	})
}

func toAppError(err error) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, ErrNoProvider):
		return apperrors.ErrProviderNotConfigured.WithError(err)
	case errors.Is(err, ErrChapterNotFound):
		return apperrors.ErrChapterNotFound.WithError(err)
	case errors.Is(err, ErrAlreadyRunning):
		return apperrors.ErrGenerationInProgress.WithError(err)
	default:
		return apperrors.ErrGenerationFailed.WithError(err)
	}
}

func (r *run) execute(ctx context.Context) {
	defer close(r.ch)
	ctx = logger.WithContext(ctx, logger.ChapterIDKey, r.chapterID)
	ctx = logger.WithContext(ctx, logger.GenerationIDKey, r.generationID)
	ctx, span := tracer.Start(ctx, "generation.Generate",
		trace.WithAttributes(
			attribute.String("chapter_id", r.chapterID),
			attribute.String("generation_id", r.generationID),
		))
	defer span.End()

	if !r.emit(ctx, Event{Type: EventConnected}) {
		return
	}

	if _, loaded := r.o.running.LoadOrStore(r.chapterID, r.generationID); loaded {
		r.fail(ctx, ErrAlreadyRunning)
		return
	}
	defer r.o.running.Delete(r.chapterID)

	if err := r.prepare(ctx); err != nil {
		tracer.Fail(span, err)
		r.fail(ctx, err)
		return
	}

	if !r.emit(ctx, Event{Type: EventProgress, Stage: "decompose", Message: "decomposing chapter into scenes"}) {
		return
	}
	frames, err := r.o.deps.Decomposer.Decompose(ctx, r.chapterID)
	if err == nil && len(frames) == 0 {
		err = ErrNoScenes
	}
	if err != nil {
		tracer.Fail(span, err)
		r.fail(ctx, fmt.Errorf("decompose chapter: %w", err))
		return
	}
	frames = append([]*entity.SceneFrame(nil), frames...)
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })

	infos := make([]SceneInfo, 0, len(frames))
	for _, f := range frames {
		infos = append(infos, SceneInfo{Index: f.Index, Purpose: f.Purpose, FocalEntities: f.FocalEntities})
	}
	if !r.emit(ctx, Event{Type: EventScenesDecomposed, Scenes: infos}) {
		return
	}

	r.loadContext(ctx)
	r.markGenerating(ctx)

	summary := Summary{ScenesTotal: len(frames)}
	texts := make([]string, 0, len(frames))
	previous := ""
	for _, frame := range frames {
		if ctx.Err() != nil {
			r.cancelled(ctx)
			return
		}
		if !r.emit(ctx, Event{Type: EventSceneStart, SceneIndex: intPtr(frame.Index), Message: frame.Purpose}) {
			r.cancelled(ctx)
			return
		}

		text, err := r.generateScene(ctx, frame, len(frames), previous)
		if ctx.Err() != nil {
			r.cancelled(ctx)
			return
		}
		if err != nil {
			summary.ScenesFailed++
			metrics.SceneOutcomeTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "scene generation failed, continuing", "scene_index", frame.Index, "error", err)
			if !r.emit(ctx, Event{Type: EventSceneFailed, SceneIndex: intPtr(frame.Index), Error: err.Error()}) {
				r.cancelled(ctx)
				return
			}
			continue
		}

		check := r.o.deps.Checker.Check(ctx, text)
		wc := len([]rune(strings.TrimSpace(text)))
		summary.ScenesCompleted++
		metrics.SceneOutcomeTotal.WithLabelValues("completed").Inc()
		texts = append(texts, strings.TrimSpace(text))
		previous = text
		if !r.emit(ctx, Event{
			Type:       EventSceneCompleted,
			SceneIndex: intPtr(frame.Index),
			WordCount:  wc,
			Passed:     boolPtr(check.Passed),
			Warnings:   check.Warnings,
		}) {
			r.cancelled(ctx)
			return
		}
	}

	content := strings.Join(texts, sceneSeparator)
	if err := r.persist(ctx, content, summary); err != nil {
		tracer.Fail(span, err)
		r.fail(ctx, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save generated chapter"))
		return
	}
	if content != "" {
		r.enqueueVectorize(ctx)
	}

	summary.WordCount = len([]rune(strings.TrimSpace(content)))
	summary.PromptTokens = r.promptTokens
	summary.CompletionTokens = r.completionTokens
	summary.DurationMs = time.Since(r.start).Milliseconds()

	metrics.GenerationRunsTotal.WithLabelValues("completed").Inc()
	metrics.GenerationDuration.Observe(time.Since(r.start).Seconds())
	metrics.GeneratedWordCount.Observe(float64(summary.WordCount))
	span.SetAttributes(
		attribute.Int("scenes_completed", summary.ScenesCompleted),
		attribute.Int("scenes_failed", summary.ScenesFailed),
	)
	logger.Info(ctx, "chapter generation completed",
		"scenes_total", summary.ScenesTotal,
		"scenes_completed", summary.ScenesCompleted,
		"scenes_failed", summary.ScenesFailed,
		"word_count", summary.WordCount,
	)
	r.emit(ctx, Event{Type: EventCompleted, Summary: &summary})
}

// cancelled 调用方断开后不落正文，仅把章节状态恢复到生成前
func (r *run) cancelled(ctx context.Context) {
	metrics.GenerationRunsTotal.WithLabelValues("cancelled").Inc()
	logger.Info(ctx, "chapter generation cancelled by caller")

	ch := r.chapter
	if ch == nil || r.prevStatus == "" || ch.Status != entity.ChapterStatusGenerating {
		return
	}
	ch.Status = r.prevStatus
	if err := r.o.deps.Chapters.Update(context.WithoutCancel(ctx), ch); err != nil {
		logger.Warn(ctx, "failed to restore chapter status", "error", err)
	}
}

// prepare 循环前的致命条件：未配置模型、章节或项目不存在
func (r *run) prepare(ctx context.Context) error {
	o := r.o
	if o.scene == nil {
		return ErrNoProvider
	}
	if _, err := o.deps.Factory.Get(ctx, o.opts.Provider); err != nil {
		return fmt.Errorf("%w: %v", ErrNoProvider, err)
	}
	if o.deps.Decomposer == nil {
		return fmt.Errorf("chapter decomposer not configured")
	}

	chapter, err := o.deps.Chapters.GetByID(ctx, r.chapterID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load chapter")
	}
	if chapter == nil {
		return ErrChapterNotFound
	}
	r.chapter = chapter

	project, err := o.deps.Projects.GetByID(ctx, chapter.ProjectID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load project")
	}
	if project == nil {
		return apperrors.ErrProjectNotFound
	}
	r.project = project
	return nil
}

// loadContext 预加载各场景共享的数据；失败只降级不中断
func (r *run) loadContext(ctx context.Context) {
	o := r.o
	projectID := r.chapter.ProjectID

	if ol, err := o.deps.Outlines.GetByParent(ctx, entity.OutlineKindChapter, r.chapter.ID); err != nil {
		logger.Warn(ctx, "failed to load chapter outline", "error", err)
	} else if ol != nil {
		r.outline = &ol.Payload
	}

	chapters, err := o.deps.Chapters.ListByProject(ctx, projectID)
	if err != nil {
		logger.Warn(ctx, "failed to list project chapters", "error", err)
	}
	for _, ch := range chapters {
		if ch != nil && ch.ID != r.chapter.ID && ch.OrderIndex < r.chapter.OrderIndex {
			r.prior = append(r.prior, ch)
		}
	}

	r.outlines = make(map[string]*entity.OutlinePayload)
	if ols, err := o.deps.Outlines.ListByProject(ctx, projectID, entity.OutlineKindChapter); err != nil {
		logger.Warn(ctx, "failed to list chapter outlines", "error", err)
	} else {
		for _, ol := range ols {
			if parent := ol.Parent(); parent != "" {
				r.outlines[parent] = &ol.Payload
			}
		}
	}

	if o.deps.Characters != nil {
		if cs, err := o.deps.Characters.ListByProject(ctx, projectID); err != nil {
			logger.Warn(ctx, "failed to list characters", "error", err)
		} else {
			r.chars = cs
		}
	}
	if o.deps.Settings != nil {
		if ss, err := o.deps.Settings.ListByProject(ctx, projectID); err != nil {
			logger.Warn(ctx, "failed to list settings", "error", err)
		} else {
			r.settings = ss
		}
	}

	// 人物出现频次的统计语料：最近几章正文 + 本章大纲
	var b strings.Builder
	from := len(r.prior) - o.opts.RecentChapters
	if from < 0 {
		from = 0
	}
	for _, ch := range r.prior[from:] {
		b.WriteString(ch.ContentText)
		b.WriteString("\n")
	}
	if r.outline != nil {
		b.WriteString(r.outline.OneLiner)
		b.WriteString("\n")
		b.WriteString(strings.Join(r.outline.Beats, "\n"))
	}
	r.corpus = b.String()
}

func (r *run) generateScene(ctx context.Context, frame *entity.SceneFrame, total int, previous string) (string, error) {
	ctx, span := tracer.Start(ctx, "generation.Scene",
		trace.WithAttributes(attribute.Int("scene_index", frame.Index)))
	defer span.End()

	in := r.buildSceneInput(ctx, frame, total, previous)

	reader, release, err := r.openStream(ctx, in)
	if err != nil {
		tracer.Fail(span, err)
		return "", err
	}
	defer release()
	defer reader.Close()

	stop := make(chan struct{})
	defer close(stop)
	chunks := pumpChunks(reader, stop)
	idle := time.NewTimer(r.o.opts.ChunkIdleTimeout)
	defer idle.Stop()

	var full strings.Builder
	for {
		var c chunk
		select {
		case c = <-chunks:
		case <-idle.C:
			err := fmt.Errorf("stream scene: no chunk within %s", r.o.opts.ChunkIdleTimeout)
			tracer.Fail(span, err)
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
		idle.Reset(r.o.opts.ChunkIdleTimeout)
		msg, err := c.msg, c.err
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tracer.Fail(span, err)
			return "", fmt.Errorf("stream scene: %w", err)
		}
		if msg == nil {
			continue
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			r.promptTokens += msg.ResponseMeta.Usage.PromptTokens
			r.completionTokens += msg.ResponseMeta.Usage.CompletionTokens
		}
		if msg.Content == "" {
			continue
		}
		full.WriteString(msg.Content)
		if !r.emit(ctx, Event{Type: EventSceneChunk, SceneIndex: intPtr(frame.Index), Delta: msg.Content}) {
			return "", context.Cause(ctx)
		}
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("provider returned empty scene")
	}
	return text, nil
}

type chunk struct {
	msg *schema.Message
	err error
}

// pumpChunks 在独立 goroutine 中读取流，读到 EOF 或错误后退出；stop 关闭后不再投递
func pumpChunks(reader *schema.StreamReader[*schema.Message], stop <-chan struct{}) <-chan chunk {
	out := make(chan chunk)
	go func() {
		for {
			msg, err := reader.Recv()
			select {
			case out <- chunk{msg: msg, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

type streamResult struct {
	reader *schema.StreamReader[*schema.Message]
	err    error
}

// openStream 打开流式调用，超过连通性超时视同模型错误
func (r *run) openStream(ctx context.Context, in *wfmodel.SceneGenerateInput) (*schema.StreamReader[*schema.Message], func(), error) {
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan streamResult, 1)
	go func() {
		reader, err := r.o.scene.Stream(sctx, in)
		done <- streamResult{reader: reader, err: err}
	}()

	drain := func() {
		go func() {
			if res := <-done; res.reader != nil {
				res.reader.Close()
			}
		}()
	}

	timer := time.NewTimer(r.o.opts.ConnectivityTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		if res.err != nil {
			cancel()
			return nil, nil, fmt.Errorf("open scene stream: %w", res.err)
		}
		if res.reader == nil {
			cancel()
			return nil, nil, fmt.Errorf("open scene stream: nil reader")
		}
		return res.reader, cancel, nil
	case <-timer.C:
		cancel()
		drain()
		return nil, nil, fmt.Errorf("open scene stream: no response within %s", r.o.opts.ConnectivityTimeout)
	case <-ctx.Done():
		cancel()
		drain()
		return nil, nil, ctx.Err()
	}
}

func (r *run) buildSceneInput(ctx context.Context, frame *entity.SceneFrame, total int, previous string) *wfmodel.SceneGenerateInput {
	o := r.o
	topic := frame.Purpose
	outlineText := ""
	if r.outline != nil {
		outlineText = renderOutline(r.outline)
		topic = strings.TrimSpace(r.outline.OneLiner + "\n" + frame.Purpose)
	}

	recent := ""
	if sel, err := o.deps.ChapterSelector.Select(ctx, r.prior, r.outlines, topic, selection.ChapterOptions{
		MaxCount:         o.opts.RecentChapters,
		TokenBudget:      o.opts.ContextTokenBudget,
		PrioritizeRecent: true,
		IncludeKeyBeats:  false,
		UseEmbedding:     true,
	}); err != nil {
		logger.Warn(ctx, "recent chapter selection failed", "error", err)
	} else {
		recent = sel.Text
	}

	settingText := ""
	query := strings.TrimSpace(frame.Purpose + " " + strings.Join(frame.FocalEntities, " "))
	if sel, err := o.deps.SettingSelector.Select(ctx, r.settings, query, selection.SettingOptions{
		MaxCount:     defaultMaxSettings,
		TokenBudget:  o.opts.SettingTokenBudget,
		UseEmbedding: true,
	}); err != nil {
		logger.Warn(ctx, "setting selection failed", "error", err)
	} else {
		settingText = sel.Text
	}

	retrieved := ""
	if o.deps.Retrieval != nil {
		if out, err := o.deps.Retrieval.Retrieve(ctx, retrieval.RetrieveInput{
			ProjectID:        r.chapter.ProjectID,
			CurrentChapterID: r.chapter.ID,
			Query:            topic,
			TopK:             o.opts.RetrievalTopK,
		}); err != nil {
			logger.Warn(ctx, "retrieval failed", "error", err)
		} else {
			retrieved = out.Prompt
		}
	}

	chars := SelectCharacters(r.chars, frame, r.outline, r.corpus, o.opts.CharacterCap, o.opts.CharacterFloor)

	in := &wfmodel.SceneGenerateInput{
		ProjectTitle:     r.project.Title,
		WritingStyle:     r.project.WritingStyle(),
		POV:              r.project.POV(),
		ChapterTitle:     r.chapter.Title,
		ChapterOutline:   outlineText,
		SceneIndex:       frame.Index,
		SceneCount:       total,
		ScenePurpose:     frame.Purpose,
		FocalEntities:    frame.FocalEntities,
		CharacterContext: RenderCharacters(chars),
		SettingContext:   settingText,
		RecentContext:    recent,
		RetrievedContext: retrieved,
		PreviousScene:    tailRunes(previous, previousSceneTailRunes),
		TargetWordCount:  r.project.TargetSceneLength(total),
		Provider:         o.opts.Provider,
		Model:            o.opts.Model,
	}
	if o.opts.Temperature > 0 {
		t := float32(o.opts.Temperature)
		in.Temperature = &t
	}
	if o.opts.MaxTokensPerScene > 0 {
		mt := o.opts.MaxTokensPerScene
		in.MaxTokens = &mt
	}
	return in
}

// markGenerating 标记生成中；写入失败不影响生成
func (r *run) markGenerating(ctx context.Context) {
	r.prevStatus = r.chapter.Status
	r.chapter.Status = entity.ChapterStatusGenerating
	if err := r.o.deps.Chapters.Update(ctx, r.chapter); err != nil {
		logger.Warn(ctx, "failed to mark chapter generating", "error", err)
	}
}

// persist 仅在有成功场景时覆盖正文；版本号递增以触发重新向量化
func (r *run) persist(ctx context.Context, content string, summary Summary) error {
	ch := r.chapter
	meta := &entity.GenerationMetadata{
		Provider:         r.o.opts.Provider,
		Model:            r.o.opts.Model,
		PromptTokens:     r.promptTokens,
		CompletionTokens: r.completionTokens,
		ScenesTotal:      summary.ScenesTotal,
		ScenesCompleted:  summary.ScenesCompleted,
		ScenesFailed:     summary.ScenesFailed,
		GeneratedAt:      time.Now().Format(time.RFC3339),
	}
	ch.GenerationMetadata = meta
	if content != "" {
		ch.SetContent(content)
		ch.IncrementVersion()
		ch.Status = entity.ChapterStatusReview
	} else if r.prevStatus != "" {
		ch.Status = r.prevStatus
	}
	return r.o.deps.Chapters.Update(ctx, ch)
}

func (r *run) enqueueVectorize(ctx context.Context) {
	if r.o.deps.Queue == nil {
		return
	}
	err := r.o.deps.Queue.Enqueue(ctx, retrieval.JobTypeChapterVectorize, retrieval.VectorizeJob{
		ProjectID: r.chapter.ProjectID,
		ChapterID: r.chapter.ID,
		Version:   r.chapter.Version,
	})
	if err != nil {
		logger.Warn(ctx, "failed to enqueue chapter vectorize", "error", err)
	}
}

func renderOutline(p *entity.OutlinePayload) string {
	var b strings.Builder
	if p.OneLiner != "" {
		b.WriteString("概要：" + p.OneLiner + "\n")
	}
	for i, beat := range p.Beats {
		fmt.Fprintf(&b, "%d. %s\n", i+1, beat)
	}
	if p.ConflictFocus != "" {
		b.WriteString("核心冲突：" + p.ConflictFocus + "\n")
	}
	if p.EntryState != "" {
		b.WriteString("开场状态：" + p.EntryState + "\n")
	}
	if p.ExitState != "" {
		b.WriteString("结束状态：" + p.ExitState + "\n")
	}
	return strings.TrimSpace(b.String())
}

func tailRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return storyutil.ExcerptMarker + string(r[len(r)-n:])
}
