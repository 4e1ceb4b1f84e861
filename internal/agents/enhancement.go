package agents

import (
	"context"
	"errors"

	"github.com/fyerfyer/standards-review-system/internal/llm"
)

// EnhancementAgent 增强代理
// 基于审查结果提出标准的改进建议
type EnhancementAgent struct {
	executor
}

// NewEnhancementAgent 创建增强代理
func NewEnhancementAgent(client llm.Client) *EnhancementAgent {
	return &EnhancementAgent{
		executor: executor{
			client: client,
			name:   "EnhancementAgent",
			stage:  StageEnhancement,
			fields: EnhancementFields,
		},
	}
}

// Name 返回代理名称
func (a *EnhancementAgent) Name() string { return a.name }

// Stage 返回阶段名称
func (a *EnhancementAgent) Stage() string { return a.stage }

// Execute 执行增强阶段，依赖审查阶段的输出
func (a *EnhancementAgent) Execute(ctx context.Context, input Input) (StageResult, error) {
	if len(input.Review) == 0 {
		return nil, NewStageError(a.name, a.stage, errors.New("review result is required"))
	}

	prompt := buildEnhancementPrompt(input.Document.Name, input.Review)
	return a.run(ctx, enhancementSystemPrompt, prompt)
}
