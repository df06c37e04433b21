// Package llm 提供基于 Eino 的 ChatModel 工厂
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"z-novel-writer/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ErrNoProviders 未配置任何 LLM 提供商
var ErrNoProviders = errors.New("no llm providers configured")

// EinoFactory 按名称惰性创建并缓存 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Configured 是否至少有一个可用的提供商
func (f *EinoFactory) Configured() bool {
	for _, p := range f.config.Providers {
		if strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.Model) != "" {
			return true
		}
	}
	return false
}

// Get 获取指定名称的 ChatModel；name 为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}
	if len(f.config.Providers) == 0 {
		return nil, ErrNoProviders
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %s has no api key", name)
	}

	mc := &openai.ChatModelConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		Timeout: providerCfg.Timeout,
	}
	if providerCfg.MaxTokens > 0 {
		mt := providerCfg.MaxTokens
		mc.MaxTokens = &mt
	}
	if providerCfg.Temperature > 0 {
		t := float32(providerCfg.Temperature)
		mc.Temperature = &t
	}

	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}
