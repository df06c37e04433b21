package generation

import (
	"context"
	"fmt"
	"strings"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

// BeatDecomposer 按章节大纲的节拍逐一拆为场景，结果持久化后复用
type BeatDecomposer struct {
	outlines repository.OutlineRepository
	scenes   repository.SceneRepository
}

func NewBeatDecomposer(outlines repository.OutlineRepository, scenes repository.SceneRepository) *BeatDecomposer {
	return &BeatDecomposer{outlines: outlines, scenes: scenes}
}

func (d *BeatDecomposer) Decompose(ctx context.Context, chapterID string) ([]*entity.SceneFrame, error) {
	if d.scenes != nil {
		existing, err := d.scenes.ListByChapter(ctx, chapterID)
		if err != nil {
			return nil, fmt.Errorf("list scenes: %w", err)
		}
		if len(existing) > 0 {
			return existing, nil
		}
	}

	outline, err := d.outlines.GetByParent(ctx, entity.OutlineKindChapter, chapterID)
	if err != nil {
		return nil, fmt.Errorf("load chapter outline: %w", err)
	}
	if outline == nil || !outline.Payload.HasBeats() {
		return nil, fmt.Errorf("chapter outline with beats not found")
	}

	candidates := append(append([]string{}, outline.Payload.FocalEntities...), outline.Payload.RequiredEntities...)
	frames := make([]*entity.SceneFrame, 0, len(outline.Payload.Beats))
	for _, beat := range outline.Payload.Beats {
		b := strings.TrimSpace(beat)
		if b == "" {
			continue
		}
		focal := make([]string, 0)
		for _, name := range candidates {
			if name != "" && strings.Contains(b, name) {
				focal = append(focal, name)
			}
		}
		if len(focal) == 0 {
			focal = append(focal, outline.Payload.FocalEntities...)
		}
		frames = append(frames, &entity.SceneFrame{
			ChapterID:     chapterID,
			Index:         len(frames),
			Purpose:       b,
			FocalEntities: dedupe(focal),
		})
	}

	if d.scenes != nil {
		if err := d.scenes.ReplaceForChapter(ctx, chapterID, frames); err != nil {
			return nil, fmt.Errorf("save scenes: %w", err)
		}
	}
	return frames, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
