package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionChapterVectors 章节级向量集合，主键为 chapter_id
	CollectionChapterVectors = "chapter_vectors"

	// DefaultVectorDimension 未配置时的向量维度
	DefaultVectorDimension = 1024

	fieldChapterID  = "chapter_id"
	fieldProjectID  = "project_id"
	fieldOrderIndex = "order_index"
	fieldVersion    = "version"
	fieldVector     = "vector"
)

// ChapterVectorsSchema 章节向量 Collection Schema
func ChapterVectorsSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionChapterVectors,
		Description:    "Chapter-level embeddings for related-chapter retrieval",
		Fields: []*entity.Field{
			{
				Name:       fieldChapterID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldProjectID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldOrderIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldVersion,
				DataType: entity.FieldTypeInt64,
			},
		},
	}
}
