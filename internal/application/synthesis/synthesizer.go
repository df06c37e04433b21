package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/workflow/chain"
	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
	"z-novel-writer/pkg/tracer"
)

var defaultTemperatures = []float64{0.7, 0.9, 1.1}

const (
	defaultAttemptTimeout = 120 * time.Second
	defaultMaxAlternates  = 2
	defaultTargetCount    = 3
	maxTargetCount        = 20
)

// Options 合成参数
type Options struct {
	PrimaryProvider   string
	SecondaryProvider string
	// Temperatures 每个元素对应一次独立尝试
	Temperatures   []float64
	AttemptTimeout time.Duration
	MaxAlternates  int
	MaxTokens      int
}

// Synthesizer 候选大纲合成器
type Synthesizer struct {
	chain *chain.OutlineChain
	opts  Options
}

// NewSynthesizer 创建合成器
func NewSynthesizer(factory workflowport.ChatModelFactory, opts Options) *Synthesizer {
	if len(opts.Temperatures) == 0 {
		opts.Temperatures = defaultTemperatures
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	if opts.MaxAlternates <= 0 {
		opts.MaxAlternates = defaultMaxAlternates
	}
	return &Synthesizer{chain: chain.NewOutlineChain(factory), opts: opts}
}

type parseError struct{ err error }

func (e *parseError) Error() string { return "parse outline: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// Synthesize 并发执行多次尝试，打分后融合为最终大纲列表
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.TargetCount <= 0 {
		req.TargetCount = defaultTargetCount
	}
	if req.TargetCount > maxTargetCount {
		req.TargetCount = maxTargetCount
	}

	ctx, span := tracer.Start(ctx, "synthesis.Synthesize",
		trace.WithAttributes(
			attribute.Int("target_count", req.TargetCount),
			attribute.Int("attempts", len(s.opts.Temperatures)),
		))
	defer span.End()

	results := make([]*HypothesisSet, len(s.opts.Temperatures))
	errs := make([]error, len(s.opts.Temperatures))

	// 单次尝试失败只丢弃该尝试，不取消其它尝试
	var g errgroup.Group
	for i, temp := range s.opts.Temperatures {
		g.Go(func() error {
			set, err := s.attempt(ctx, i, temp, req)
			if err != nil {
				errs[i] = err
				logger.Warn(ctx, "outline hypothesis dropped", "attempt", i, "temperature", temp, "error", err)
				return nil
			}
			results[i] = set
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		tracer.Fail(span, err)
		return nil, err
	}

	sets := make([]HypothesisSet, 0, len(results))
	for _, r := range results {
		if r != nil {
			sets = append(sets, *r)
		}
	}
	if len(sets) == 0 {
		err := fmt.Errorf("%w: %v", ErrNoHypotheses, errors.Join(errs...))
		tracer.Fail(span, err)
		return nil, err
	}

	base, merged := Merge(sets, s.opts.MaxAlternates)
	if len(merged) > req.TargetCount {
		merged = merged[:req.TargetCount]
	}
	res := &Result{
		Sets:     sets,
		BaseSet:  base,
		Dropped:  len(s.opts.Temperatures) - len(sets),
		Outlines: make([]entity.OutlinePayload, 0, len(merged)),
	}
	for pos := range merged {
		res.Outlines = append(res.Outlines, merged[pos].Payload(req.StartIndex+pos))
	}

	span.SetAttributes(
		attribute.Int("surviving_sets", len(sets)),
		attribute.Float64("base_mean", sets[base].Mean),
	)
	logger.Info(ctx, "outline synthesis completed",
		"surviving_sets", len(sets),
		"dropped", res.Dropped,
		"base_attempt", sets[base].Attempt,
		"base_mean", sets[base].Mean,
		"outlines", len(res.Outlines),
	)
	return res, nil
}

// attempt 主模型失败或超时后，用备用模型重试一次；解析失败不重试
func (s *Synthesizer) attempt(ctx context.Context, idx int, temp float64, req Request) (*HypothesisSet, error) {
	primary := strings.TrimSpace(s.opts.PrimaryProvider)
	set, err := s.tryProvider(ctx, idx, primary, temp, req)
	if err == nil {
		return set, nil
	}
	var pe *parseError
	if errors.As(err, &pe) || ctx.Err() != nil {
		return nil, err
	}
	secondary := strings.TrimSpace(s.opts.SecondaryProvider)
	if secondary == "" || secondary == primary {
		return nil, err
	}
	logger.Warn(ctx, "outline attempt retrying with secondary provider",
		"attempt", idx, "primary", primary, "secondary", secondary, "error", err)
	return s.tryProvider(ctx, idx, secondary, temp, req)
}

func (s *Synthesizer) tryProvider(ctx context.Context, idx int, provider string, temp float64, req Request) (*HypothesisSet, error) {
	actx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()

	t := float32(temp)
	in := &wfmodel.OutlineSynthesisInput{
		ProjectTitle:  req.ProjectTitle,
		Genre:         req.Genre,
		ThemeTags:     req.ThemeTags,
		PromptContext: req.PromptContext,
		TargetCount:   req.TargetCount,
		StartIndex:    req.StartIndex,
		Provider:      provider,
		Temperature:   &t,
	}
	if s.opts.MaxTokens > 0 {
		mt := s.opts.MaxTokens
		in.MaxTokens = &mt
	}

	msg, err := s.invoke(actx, in)
	if err != nil {
		result := "error"
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			result = "timeout"
			err = fmt.Errorf("attempt timed out after %s: %w", s.opts.AttemptTimeout, err)
		}
		metrics.SynthesisAttemptsTotal.WithLabelValues(providerLabel(provider), result).Inc()
		return nil, err
	}
	cands, err := ParseCandidates(msg.Content)
	if err != nil {
		metrics.SynthesisAttemptsTotal.WithLabelValues(providerLabel(provider), "parse_error").Inc()
		return nil, &parseError{err: err}
	}
	metrics.SynthesisAttemptsTotal.WithLabelValues(providerLabel(provider), "ok").Inc()

	scored := Score(cands, req.ThemeTags, req.Previous)
	return &HypothesisSet{
		Attempt:     idx,
		Provider:    provider,
		Temperature: temp,
		Candidates:  scored,
		Mean:        MeanTotal(scored),
	}, nil
}

type invokeResult struct {
	msg *schema.Message
	err error
}

// invoke 与 ctx 截止时间赛跑，模型忽略 ctx 时也按时返回
func (s *Synthesizer) invoke(ctx context.Context, in *wfmodel.OutlineSynthesisInput) (*schema.Message, error) {
	done := make(chan invokeResult, 1)
	go func() {
		msg, err := s.chain.Invoke(ctx, in)
		done <- invokeResult{msg: msg, err: err}
	}()
	select {
	case res := <-done:
		return res.msg, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func providerLabel(p string) string {
	if p == "" {
		return "default"
	}
	return p
}
