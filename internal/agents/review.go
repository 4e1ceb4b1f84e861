package agents

import (
	"context"
	"errors"

	"github.com/fyerfyer/standards-review-system/internal/llm"
)

// ReviewAgent 审查代理
// 对标准全文进行结构化审查，产出五个固定章节
type ReviewAgent struct {
	executor
}

// NewReviewAgent 创建审查代理
func NewReviewAgent(client llm.Client) *ReviewAgent {
	return &ReviewAgent{
		executor: executor{
			client: client,
			name:   "ReviewAgent",
			stage:  StageReview,
			fields: ReviewFields,
		},
	}
}

// Name 返回代理名称
func (a *ReviewAgent) Name() string { return a.name }

// Stage 返回阶段名称
func (a *ReviewAgent) Stage() string { return a.stage }

// Execute 执行审查阶段
func (a *ReviewAgent) Execute(ctx context.Context, input Input) (StageResult, error) {
	if input.Document.Content == "" {
		return nil, NewStageError(a.name, a.stage, errors.New("standard document content is empty"))
	}

	prompt := buildReviewPrompt(input.Document.Name, input.Document.Content)
	return a.run(ctx, reviewSystemPrompt, prompt)
}
