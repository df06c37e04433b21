package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"

	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
)

// SettingOptions 单次设定选择的参数
type SettingOptions struct {
	MaxCount     int
	TokenBudget  int
	UseEmbedding bool
}

// SelectedSetting 被选中的情境设定
type SelectedSetting struct {
	Setting *entity.Setting
	Score   float64
	Tokens  int
	Block   string
}

// SettingResult 设定选择结果
type SettingResult struct {
	// Always 全局/规则类设定，始终包含，不计入预算
	Always       []*entity.Setting
	AlwaysTokens int
	Contextual   []SelectedSetting
	// Tokens 情境设定消耗的 token，不超过预算
	Tokens int
	Text   string
	Method Method
}

// SettingSelector 按与查询文本的相关度挑选世界设定
type SettingSelector struct {
	embedder embedding.Embedder
	params   Params
}

// NewSettingSelector 创建设定选择器；embedder 为 nil 时直接使用关键词打分
func NewSettingSelector(embedder embedding.Embedder, params Params) *SettingSelector {
	return &SettingSelector{embedder: embedder, params: params.normalized()}
}

type settingCandidate struct {
	setting *entity.Setting
	score   float64
	block   string
	tokens  int
}

// Select 选择与 query 相关的设定
func (s *SettingSelector) Select(ctx context.Context, settings []*entity.Setting, query string, opts SettingOptions) (*SettingResult, error) {
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = defaultTokenBudget
	}

	res := &SettingResult{}
	alwaysBlocks := make([]string, 0)
	pool := make([]*settingCandidate, 0, len(settings))
	poolTokens := 0
	for _, st := range settings {
		if st == nil {
			continue
		}
		block := renderSetting(st)
		if st.AlwaysIncluded() {
			res.Always = append(res.Always, st)
			res.AlwaysTokens += blockTokens(block, s.params.TokenRatio)
			alwaysBlocks = append(alwaysBlocks, block)
			continue
		}
		c := &settingCandidate{setting: st, block: block, tokens: blockTokens(block, s.params.TokenRatio)}
		pool = append(pool, c)
		poolTokens += c.tokens
	}

	var picked []*settingCandidate
	switch {
	case poolTokens <= opts.TokenBudget && (opts.MaxCount <= 0 || len(pool) <= opts.MaxCount):
		res.Method = MethodAll
		picked = pool
		res.Tokens = poolTokens
	default:
		var err error
		if opts.UseEmbedding && s.embedder != nil && strings.TrimSpace(query) != "" {
			picked, res.Tokens, err = s.selectByEmbedding(ctx, pool, query, opts)
			if err == nil {
				res.Method = MethodEmbedding
			} else {
				logger.Warn(ctx, "setting selection falls back to keyword", "error", err)
			}
		}
		if res.Method == "" {
			res.Method = MethodKeyword
			picked, res.Tokens = s.selectByKeyword(pool, query, opts)
		}
	}

	blocks := append([]string{}, alwaysBlocks...)
	for _, c := range picked {
		res.Contextual = append(res.Contextual, SelectedSetting{
			Setting: c.setting,
			Score:   c.score,
			Tokens:  c.tokens,
			Block:   c.block,
		})
		blocks = append(blocks, c.block)
	}
	res.Text = strings.Join(blocks, blockSeparator)

	metrics.SelectionTotal.WithLabelValues("setting", string(res.Method)).Inc()
	logger.Debug(ctx, "settings selected",
		"method", res.Method,
		"always", len(res.Always),
		"contextual", len(res.Contextual),
		"pool", len(pool),
		"tokens", res.Tokens,
	)
	return res, nil
}

func (s *SettingSelector) selectByEmbedding(
	ctx context.Context,
	pool []*settingCandidate,
	query string,
	opts SettingOptions,
) ([]*settingCandidate, int, error) {
	texts := []string{query}
	missing := make([]*settingCandidate, 0)
	for _, c := range pool {
		if len(c.setting.Embedding) == 0 {
			missing = append(missing, c)
			texts = append(texts, c.block)
		}
	}
	vecs, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed settings: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, 0, fmt.Errorf("embed settings: got %d vectors for %d texts", len(vecs), len(texts))
	}
	queryVec := toFloat32(vecs[0])
	vectors := make(map[*settingCandidate][]float32, len(pool))
	for i, c := range missing {
		vectors[c] = toFloat32(vecs[i+1])
	}

	ranked := make([]*settingCandidate, 0, len(pool))
	for _, c := range pool {
		vec, ok := vectors[c]
		if !ok {
			vec = c.setting.Embedding
		}
		sim, err := storyutil.Cosine(queryVec, vec)
		if err != nil {
			logger.Warn(ctx, "skipping setting with incompatible embedding",
				"setting_id", c.setting.ID, "error", err)
			continue
		}
		if sim < s.params.MinRelevance {
			continue
		}
		c.score = sim
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return packCandidates(ranked, opts.TokenBudget, opts.MaxCount)
}

// selectByKeyword 标题关键词命中 +2/个，标题整体出现 +3；
// 正分条目按分数装箱后，剩余名额再补少量零分条目
func (s *SettingSelector) selectByKeyword(pool []*settingCandidate, query string, opts SettingOptions) ([]*settingCandidate, int) {
	q := strings.ToLower(query)
	positive := make([]*settingCandidate, 0, len(pool))
	zero := make([]*settingCandidate, 0)
	for _, c := range pool {
		c.score = keywordScore(c.setting.Title, q)
		if c.score > 0 {
			positive = append(positive, c)
		} else {
			zero = append(zero, c)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool { return positive[i].score > positive[j].score })

	picked, used, _ := packCandidates(positive, opts.TokenBudget, opts.MaxCount)
	added := 0
	for _, c := range zero {
		if added >= s.params.KeywordZeroScoreCap {
			break
		}
		if opts.MaxCount > 0 && len(picked) >= opts.MaxCount {
			break
		}
		if used+c.tokens > opts.TokenBudget {
			continue
		}
		picked = append(picked, c)
		used += c.tokens
		added++
	}
	return picked, used
}

func keywordScore(title, lowerQuery string) float64 {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" || lowerQuery == "" {
		return 0
	}
	score := 0.0
	for _, kw := range titleKeywords(t) {
		if strings.Contains(lowerQuery, kw) {
			score += 2
		}
	}
	if strings.Contains(lowerQuery, t) {
		score += 3
	}
	return score
}

// titleKeywords 按空白与标点切分标题，保留至少两个字符的片段
func titleKeywords(title string) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return storyutil.UniqueStrings(out)
}

func packCandidates(ranked []*settingCandidate, budget, maxCount int) ([]*settingCandidate, int, error) {
	tokens := make([]int, len(ranked))
	for i, c := range ranked {
		tokens[i] = c.tokens
	}
	accepted, used := packGreedy(tokens, budget, maxCount)
	out := make([]*settingCandidate, 0, len(accepted))
	for _, idx := range accepted {
		out = append(out, ranked[idx])
	}
	return out, used, nil
}

func renderSetting(st *entity.Setting) string {
	return fmt.Sprintf("【%s】%s", strings.TrimSpace(st.Title), strings.TrimSpace(st.Content))
}
