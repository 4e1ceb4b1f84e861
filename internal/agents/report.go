package agents

import (
	"context"
	"errors"

	"github.com/fyerfyer/standards-review-system/internal/llm"
)

// FinalReportAgent 最终报告代理
// 汇总前三个阶段的输出，生成整合报告
type FinalReportAgent struct {
	executor
}

// NewFinalReportAgent 创建最终报告代理
func NewFinalReportAgent(client llm.Client) *FinalReportAgent {
	return &FinalReportAgent{
		executor: executor{
			client: client,
			name:   "FinalReportAgent",
			stage:  StageFinalReport,
			fields: FinalReportFields,
		},
	}
}

// Name 返回代理名称
func (a *FinalReportAgent) Name() string { return a.name }

// Stage 返回阶段名称
func (a *FinalReportAgent) Stage() string { return a.stage }

// Execute 执行最终报告阶段，依赖此前所有阶段的输出
func (a *FinalReportAgent) Execute(ctx context.Context, input Input) (StageResult, error) {
	if len(input.Review) == 0 || len(input.Enhancement) == 0 || len(input.Validation) == 0 {
		return nil, NewStageError(a.name, a.stage, errors.New("all previous stage results are required"))
	}

	prompt := buildFinalReportPrompt(input.Document.Name, input.Review, input.Enhancement, input.Validation)
	return a.run(ctx, finalReportSystemPrompt, prompt)
}
