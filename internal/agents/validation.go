package agents

import (
	"context"
	"errors"

	"github.com/fyerfyer/standards-review-system/internal/llm"
)

// ValidationAgent 验证代理
// 评估改进建议与原标准审查结果的一致性
type ValidationAgent struct {
	executor
}

// NewValidationAgent 创建验证代理
func NewValidationAgent(client llm.Client) *ValidationAgent {
	return &ValidationAgent{
		executor: executor{
			client: client,
			name:   "ValidationAgent",
			stage:  StageValidation,
			fields: ValidationFields,
		},
	}
}

// Name 返回代理名称
func (a *ValidationAgent) Name() string { return a.name }

// Stage 返回阶段名称
func (a *ValidationAgent) Stage() string { return a.stage }

// Execute 执行验证阶段，依赖审查和增强阶段的输出
func (a *ValidationAgent) Execute(ctx context.Context, input Input) (StageResult, error) {
	if len(input.Review) == 0 {
		return nil, NewStageError(a.name, a.stage, errors.New("review result is required"))
	}
	if len(input.Enhancement) == 0 {
		return nil, NewStageError(a.name, a.stage, errors.New("enhancement result is required"))
	}

	prompt := buildValidationPrompt(input.Document.Name, input.Review, input.Enhancement)
	return a.run(ctx, validationSystemPrompt, prompt)
}
