package synthesis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel 按温度返回预设输出
type scriptedModel struct {
	mu      sync.Mutex
	outputs map[float32]string
	errs    map[float32]error
	calls   map[float32]int
	// stalls 忽略 ctx 的固定延迟，模拟不响应取消的供应商
	stalls map[float32]time.Duration
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		outputs: make(map[float32]string),
		errs:    make(map[float32]error),
		calls:   make(map[float32]int),
		stalls:  make(map[float32]time.Duration),
	}
}

func (m *scriptedModel) Generate(ctx context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	o := model.GetCommonOptions(nil, opts...)
	var temp float32
	if o.Temperature != nil {
		temp = *o.Temperature
	}
	m.mu.Lock()
	m.calls[temp]++
	err := m.errs[temp]
	out, ok := m.outputs[temp]
	stall := m.stalls[temp]
	m.mu.Unlock()

	if stall > 0 {
		time.Sleep(stall)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return schema.AssistantMessage(out, nil), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

func (m *scriptedModel) callCount(temp float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[temp]
}

type fakeFactory struct {
	models map[string]model.BaseChatModel
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return m, nil
}
