package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

const recentOutlineContext = 3

// GenerateInput 章节大纲生成请求
type GenerateInput struct {
	ProjectID   string
	TargetCount int
	// StartIndex 小于 0 表示接在已有章节大纲之后
	StartIndex int
	Guidance   string
	Persist    bool
}

// Service 组装上下文、调用合成器并持久化结果
type Service struct {
	synth      *Synthesizer
	projects   repository.ProjectRepository
	chapters   repository.ChapterRepository
	outlines   repository.OutlineRepository
	transactor repository.Transactor
}

// NewService 创建大纲生成服务；transactor 可为 nil
func NewService(
	synth *Synthesizer,
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	outlines repository.OutlineRepository,
	transactor repository.Transactor,
) *Service {
	return &Service{
		synth:      synth,
		projects:   projects,
		chapters:   chapters,
		outlines:   outlines,
		transactor: transactor,
	}
}

// GenerateChapterOutlines 生成后续章节的大纲；Persist 时与已有大纲合并后整体替换
func (s *Service) GenerateChapterOutlines(ctx context.Context, in GenerateInput) (*Result, error) {
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load project")
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}

	existing, err := s.outlines.ListByProject(ctx, project.ID, entity.OutlineKindChapter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list outlines")
	}
	sort.SliceStable(existing, func(i, j int) bool { return existing[i].OrderIndex < existing[j].OrderIndex })

	start := in.StartIndex
	if start < 0 {
		start = 0
		if n := len(existing); n > 0 {
			start = existing[n-1].OrderIndex + 1
		}
	}

	kept := make([]*entity.Outline, 0, len(existing))
	var previous *CandidateOutline
	for _, o := range existing {
		if o.OrderIndex >= start {
			continue
		}
		kept = append(kept, o)
		if o.OrderIndex == start-1 {
			previous = fromPayload(&o.Payload)
		}
	}

	mainOutline := ""
	if mains, err := s.outlines.ListByProject(ctx, project.ID, entity.OutlineKindMain); err != nil {
		logger.Warn(ctx, "failed to load main outline", "project_id", project.ID, "error", err)
	} else if len(mains) > 0 {
		mainOutline = strings.TrimSpace(mains[0].Payload.OneLiner)
	}

	res, err := s.synth.Synthesize(ctx, Request{
		ProjectTitle:  project.Title,
		Genre:         project.Genre,
		ThemeTags:     project.ThemeTags,
		PromptContext: buildPromptContext(project, mainOutline, kept, in.Guidance),
		TargetCount:   in.TargetCount,
		StartIndex:    start,
		Previous:      previous,
	})
	if err != nil {
		return nil, apperrors.ErrSynthesisFailed.WithError(err).WithDetail(err.Error())
	}

	if !in.Persist {
		return res, nil
	}
	if err := s.persist(ctx, project.ID, kept, res.Outlines); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save outlines")
	}
	return res, nil
}

// parentRef 空 ID 落库为 NULL，uuid 列不接受空串
func parentRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func (s *Service) persist(ctx context.Context, projectID string, kept []*entity.Outline, payloads []entity.OutlinePayload) error {
	chapters, err := s.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list chapters: %w", err)
	}
	byOrder := make(map[int]string, len(chapters))
	for _, ch := range chapters {
		byOrder[ch.OrderIndex] = ch.ID
	}

	all := append([]*entity.Outline{}, kept...)
	for i := range payloads {
		p := payloads[i]
		if err := p.Validate(entity.OutlineKindChapter); err != nil {
			logger.Warn(ctx, "skipping invalid merged outline", "order_index", p.OrderIndex, "error", err)
			continue
		}
		all = append(all, &entity.Outline{
			ProjectID:  projectID,
			Kind:       entity.OutlineKindChapter,
			ParentID:   parentRef(byOrder[p.OrderIndex]),
			OrderIndex: p.OrderIndex,
			Payload:    p,
		})
	}

	replace := func(ctx context.Context) error {
		return s.outlines.ReplaceAll(ctx, projectID, entity.OutlineKindChapter, all)
	}
	if s.transactor == nil {
		return replace(ctx)
	}
	return s.transactor.WithTransaction(ctx, replace)
}

func buildPromptContext(project *entity.Project, mainOutline string, kept []*entity.Outline, guidance string) string {
	var b strings.Builder
	if d := strings.TrimSpace(project.Description); d != "" {
		b.WriteString("作品简介：")
		b.WriteString(d)
		b.WriteString("\n")
	}
	if mainOutline != "" {
		b.WriteString("总纲：")
		b.WriteString(mainOutline)
		b.WriteString("\n")
	}
	from := len(kept) - recentOutlineContext
	if from < 0 {
		from = 0
	}
	if recent := kept[from:]; len(recent) > 0 {
		b.WriteString("最近章节大纲：\n")
		for _, o := range recent {
			fmt.Fprintf(&b, "- 第%d章 %s：%s\n", o.OrderIndex+1, o.Payload.Title, o.Payload.OneLiner)
			if o.Payload.ExitState != "" {
				fmt.Fprintf(&b, "  结束状态：%s\n", o.Payload.ExitState)
			}
		}
	}
	if g := strings.TrimSpace(guidance); g != "" {
		b.WriteString("作者要求：")
		b.WriteString(g)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func fromPayload(p *entity.OutlinePayload) *CandidateOutline {
	if p == nil {
		return nil
	}
	return &CandidateOutline{
		Title:            p.Title,
		OneLiner:         p.OneLiner,
		Beats:            append([]string(nil), p.Beats...),
		ThemeTags:        append([]string(nil), p.ThemeTags...),
		ConflictFocus:    p.ConflictFocus,
		RequiredEntities: append([]string(nil), p.RequiredEntities...),
		FocalEntities:    append([]string(nil), p.FocalEntities...),
		StakesDelta:      p.StakesDelta,
		EntryState:       p.EntryState,
		ExitState:        p.ExitState,
	}
}
