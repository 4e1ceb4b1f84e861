package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/standards-review-system/internal/llm"
	"github.com/fyerfyer/standards-review-system/internal/models"
)

// stubLLMClient 返回固定响应的测试客户端
type stubLLMClient struct {
	reply string
	err   error
	calls int
}

func (c *stubLLMClient) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	return c.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

func (c *stubLLMClient) Chat(ctx context.Context, messages []llm.Message, options ...llm.ChatOption) (*llm.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Text: c.reply, ModelName: c.Name()}, nil
}

func (c *stubLLMClient) Name() string { return "stub-model" }

const reviewReply = `## Core Principles
Substance over form governs Ijarah accounting.

## Key Definitions
Ijarah: a lease of an asset for an agreed rental.

## Main Requirements
The lessor recognizes the leased asset.

## Compliance Criteria
Disclosure of rental obligations is mandatory.

## Implementation
Apply prospectively from the effective date.`

func testDocument() models.StandardDocument {
	return models.StandardDocument{
		Name:    "FAS_32",
		Content: "This standard establishes principles for Ijarah transactions.",
	}
}

func TestReviewAgent(t *testing.T) {
	t.Run("ParsesAllSections", func(t *testing.T) {
		client := &stubLLMClient{reply: reviewReply}
		agent := NewReviewAgent(client)

		result, err := agent.Execute(context.Background(), Input{Document: testDocument()})
		require.NoError(t, err, "审查阶段不应返回错误")

		require.Len(t, result, len(ReviewFields), "应包含全部审查字段")
		assert.Contains(t, result["core_principles"], "Substance over form")
		assert.Contains(t, result["key_definitions"], "Ijarah")
		assert.Contains(t, result["implementation"], "prospectively")
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		agent := NewReviewAgent(&stubLLMClient{reply: reviewReply})
		_, err := agent.Execute(context.Background(), Input{
			Document: models.StandardDocument{Name: "empty"},
		})
		require.Error(t, err, "空文档应返回错误")

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageReview, stageErr.Stage)
	})

	t.Run("ModelFailure", func(t *testing.T) {
		client := &stubLLMClient{err: errors.New("connection refused")}
		agent := NewReviewAgent(client)

		_, err := agent.Execute(context.Background(), Input{Document: testDocument()})
		require.Error(t, err)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr, "模型调用失败应包装为阶段错误")
		assert.Equal(t, "ReviewAgent", stageErr.Agent)
	})
}

func TestEnhancementAgent(t *testing.T) {
	review := StageResult{"core_principles": "principles text"}

	t.Run("Success", func(t *testing.T) {
		client := &stubLLMClient{reply: "## Enhancement Proposals\nClarify the definition of rental period."}
		agent := NewEnhancementAgent(client)

		result, err := agent.Execute(context.Background(), Input{
			Document: testDocument(),
			Review:   review,
		})
		require.NoError(t, err)
		assert.Contains(t, result["enhancement_proposals"], "rental period")
	})

	t.Run("MissingReview", func(t *testing.T) {
		agent := NewEnhancementAgent(&stubLLMClient{reply: "text"})
		_, err := agent.Execute(context.Background(), Input{Document: testDocument()})
		assert.Error(t, err, "缺少审查结果应返回错误")
	})
}

func TestValidationAgent(t *testing.T) {
	review := StageResult{"core_principles": "principles"}
	enhancement := StageResult{"enhancement_proposals": "proposals"}

	t.Run("Success", func(t *testing.T) {
		client := &stubLLMClient{reply: "The proposals are consistent with the standard."}
		agent := NewValidationAgent(client)

		result, err := agent.Execute(context.Background(), Input{
			Document:    testDocument(),
			Review:      review,
			Enhancement: enhancement,
		})
		require.NoError(t, err)
		// 单字段阶段：整体响应归入该字段
		assert.Contains(t, result["validation_result"], "consistent")
	})

	t.Run("MissingEnhancement", func(t *testing.T) {
		agent := NewValidationAgent(&stubLLMClient{reply: "text"})
		_, err := agent.Execute(context.Background(), Input{
			Document: testDocument(),
			Review:   review,
		})
		assert.Error(t, err, "缺少增强结果应返回错误")
	})
}

func TestFinalReportAgent(t *testing.T) {
	input := Input{
		Document:    testDocument(),
		Review:      StageResult{"core_principles": "principles"},
		Enhancement: StageResult{"enhancement_proposals": "proposals"},
		Validation:  StageResult{"validation_result": "validated"},
	}

	t.Run("Success", func(t *testing.T) {
		client := &stubLLMClient{reply: "## Final Report\nExecutive summary of the review."}
		agent := NewFinalReportAgent(client)

		result, err := agent.Execute(context.Background(), input)
		require.NoError(t, err)
		assert.Contains(t, result["final_report"], "Executive summary")
	})

	t.Run("MissingValidation", func(t *testing.T) {
		agent := NewFinalReportAgent(&stubLLMClient{reply: "text"})
		partial := input
		partial.Validation = nil
		_, err := agent.Execute(context.Background(), partial)
		assert.Error(t, err, "缺少验证结果应返回错误")
	})
}

func TestParseSections(t *testing.T) {
	t.Run("MarkdownHeadings", func(t *testing.T) {
		result, err := ParseSections(reviewReply, StageReview, ReviewFields)
		require.NoError(t, err)
		assert.Contains(t, result["main_requirements"], "lessor")
		assert.Contains(t, result["compliance_criteria"], "Disclosure")
	})

	t.Run("NumberedHeadings", func(t *testing.T) {
		text := "1. Core Principles:\nfirst section\n2. Key Definitions:\nsecond section"
		result, err := ParseSections(text, StageReview, ReviewFields)
		require.NoError(t, err)
		assert.Equal(t, "first section", result["core_principles"])
		assert.Equal(t, "second section", result["key_definitions"])
	})

	t.Run("BoldHeadings", func(t *testing.T) {
		text := "**Core Principles**\nbold section content"
		result, err := ParseSections(text, StageReview, ReviewFields)
		require.NoError(t, err)
		assert.Equal(t, "bold section content", result["core_principles"])
	})

	t.Run("MissingFieldsPresentButEmpty", func(t *testing.T) {
		text := "## Core Principles\nonly this section"
		result, err := ParseSections(text, StageReview, ReviewFields)
		require.NoError(t, err)
		require.Len(t, result, len(ReviewFields), "所有字段都应存在")
		assert.Equal(t, "", result["implementation"], "未出现的字段应为空字符串")
	})

	t.Run("NoHeadingsFallsBackToFirstField", func(t *testing.T) {
		text := "free-form answer with no headings at all"
		result, err := ParseSections(text, StageReview, ReviewFields)
		require.NoError(t, err)
		assert.Equal(t, text, result["core_principles"], "无标题时整体文本应归入首个字段")
	})

	t.Run("SingleField", func(t *testing.T) {
		result, err := ParseSections("whole body", StageValidation, ValidationFields)
		require.NoError(t, err)
		assert.Equal(t, "whole body", result["validation_result"])
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		_, err := ParseSections("   \n  ", StageReview, ReviewFields)
		require.Error(t, err, "空响应应返回解析错误")

		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})
}
