package generation

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"z-novel-writer/internal/domain/entity"
)

// sceneScript 描述一次 Stream 调用的行为
type sceneScript struct {
	chunks []string
	// openErr 打开流即失败
	openErr error
	// midErr 输出完 chunks 后以该错误中断
	midErr error
	// block 一直阻塞到 ctx 结束
	block bool
	// stall 输出完 chunks 后既不结束也不报错，直到 ctx 结束
	stall bool
	usage *schema.TokenUsage
}

type streamModel struct {
	mu      sync.Mutex
	scripts []sceneScript
	calls   int
	started chan int
}

func newStreamModel(scripts ...sceneScript) *streamModel {
	return &streamModel{scripts: scripts, started: make(chan int, 16)}
}

func (m *streamModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, fmt.Errorf("generate not supported")
}

func (m *streamModel) Stream(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	script := sceneScript{chunks: []string{"默认场景正文。"}}
	if idx < len(m.scripts) {
		script = m.scripts[idx]
	}
	m.mu.Unlock()

	select {
	case m.started <- idx:
	default:
	}

	switch {
	case script.block:
		<-ctx.Done()
		return nil, ctx.Err()
	case script.openErr != nil:
		return nil, script.openErr
	case script.stall:
		sr, sw := schema.Pipe[*schema.Message](len(script.chunks))
		go func() {
			defer sw.Close()
			for _, c := range script.chunks {
				sw.Send(schema.AssistantMessage(c, nil), nil)
			}
			<-ctx.Done()
		}()
		return sr, nil
	case script.midErr != nil:
		sr, sw := schema.Pipe[*schema.Message](len(script.chunks) + 1)
		go func() {
			defer sw.Close()
			for _, c := range script.chunks {
				sw.Send(schema.AssistantMessage(c, nil), nil)
			}
			sw.Send(nil, script.midErr)
		}()
		return sr, nil
	}

	msgs := make([]*schema.Message, 0, len(script.chunks)+1)
	for _, c := range script.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	if script.usage != nil {
		last := schema.AssistantMessage("", nil)
		last.ResponseMeta = &schema.ResponseMeta{Usage: script.usage}
		msgs = append(msgs, last)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (m *streamModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeFactory struct {
	model model.BaseChatModel
	err   error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

type fakeProjects struct{ projects map[string]*entity.Project }

func (r *fakeProjects) GetByID(_ context.Context, id string) (*entity.Project, error) {
	return r.projects[id], nil
}

type fakeChapters struct {
	mu       sync.Mutex
	chapters map[string]*entity.Chapter
	statuses []entity.ChapterStatus
}

func (r *fakeChapters) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chapters[id], nil
}

func (r *fakeChapters) Update(_ context.Context, ch *entity.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ch.Status)
	r.chapters[ch.ID] = ch
	return nil
}

func (r *fakeChapters) ListByProject(_ context.Context, projectID string) ([]*entity.Chapter, error) {
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

func (r *fakeChapters) UpdateEmbedding(context.Context, string, []float32, int) error { return nil }

func (r *fakeChapters) statusHistory() []entity.ChapterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.ChapterStatus(nil), r.statuses...)
}

type fakeOutlines struct {
	byParent map[string]*entity.Outline
	err      error
}

func (r *fakeOutlines) GetByParent(_ context.Context, _ entity.OutlineKind, parentID string) (*entity.Outline, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byParent[parentID], nil
}

func (r *fakeOutlines) ListByProject(context.Context, string, entity.OutlineKind) ([]*entity.Outline, error) {
	out := make([]*entity.Outline, 0, len(r.byParent))
	for _, o := range r.byParent {
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeOutlines) ReplaceAll(context.Context, string, entity.OutlineKind, []*entity.Outline) error {
	return nil
}

type fakeScenes struct {
	existing []*entity.SceneFrame
	saved    []*entity.SceneFrame
}

func (r *fakeScenes) ListByChapter(context.Context, string) ([]*entity.SceneFrame, error) {
	return r.existing, nil
}

func (r *fakeScenes) ReplaceForChapter(_ context.Context, _ string, scenes []*entity.SceneFrame) error {
	r.saved = scenes
	return nil
}

type staticDecomposer struct {
	frames []*entity.SceneFrame
	err    error
}

func (d *staticDecomposer) Decompose(context.Context, string) ([]*entity.SceneFrame, error) {
	return d.frames, d.err
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []string
}

func (q *recordingQueue) Enqueue(_ context.Context, jobType string, _ any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobType)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func ptr(s string) *string { return &s }
