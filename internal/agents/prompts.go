package agents

import (
	"fmt"
	"strings"
)

// 各阶段的字段结构
var (
	// ReviewFields 审查阶段输出字段
	ReviewFields = []string{
		"core_principles",
		"key_definitions",
		"main_requirements",
		"compliance_criteria",
		"implementation",
	}

	// EnhancementFields 增强阶段输出字段
	EnhancementFields = []string{"enhancement_proposals"}

	// ValidationFields 验证阶段输出字段
	ValidationFields = []string{"validation_result"}

	// FinalReportFields 最终报告阶段输出字段
	FinalReportFields = []string{"final_report"}
)

// 各阶段的系统提示词
const (
	reviewSystemPrompt = `You are an expert reviewer of financial accounting standards. ` +
		`Analyze the standard provided by the user and produce a structured review. ` +
		`Organize your answer under exactly these markdown headings: ` +
		`## Core Principles, ## Key Definitions, ## Main Requirements, ` +
		`## Compliance Criteria, ## Implementation.`

	enhancementSystemPrompt = `You are an expert in financial standards modernization. ` +
		`Based on the review of a standard, propose concrete enhancements addressing ` +
		`clarity, completeness, practical applicability and alignment with current market practice. ` +
		`Write your answer under the markdown heading: ## Enhancement Proposals.`

	validationSystemPrompt = `You are a senior standards board validator. ` +
		`Assess whether the proposed enhancements are consistent with the original standard's ` +
		`core principles and requirements, and whether they introduce contradictions or compliance risks. ` +
		`Write your assessment under the markdown heading: ## Validation Result.`

	finalReportSystemPrompt = `You are preparing the final report of a standards review board. ` +
		`Consolidate the review, the enhancement proposals and the validation assessment ` +
		`into a single coherent report with an executive summary, findings and recommendations. ` +
		`Write the report under the markdown heading: ## Final Report.`
)

// buildReviewPrompt 构造审查阶段的用户提示词
func buildReviewPrompt(name, content string) string {
	return fmt.Sprintf("Standard: %s\n\nFull text of the standard:\n\n%s", name, content)
}

// buildEnhancementPrompt 构造增强阶段的用户提示词
func buildEnhancementPrompt(name string, review StageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standard: %s\n\nStructured review of the standard:\n\n", name)
	writeSections(&b, review, ReviewFields)
	b.WriteString("\nPropose enhancements to this standard.")
	return b.String()
}

// buildValidationPrompt 构造验证阶段的用户提示词
func buildValidationPrompt(name string, review, enhancement StageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standard: %s\n\nOriginal review:\n\n", name)
	writeSections(&b, review, ReviewFields)
	b.WriteString("\nProposed enhancements:\n\n")
	writeSections(&b, enhancement, EnhancementFields)
	b.WriteString("\nValidate the proposed enhancements against the original review.")
	return b.String()
}

// buildFinalReportPrompt 构造最终报告阶段的用户提示词
func buildFinalReportPrompt(name string, review, enhancement, validation StageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standard: %s\n\nReview:\n\n", name)
	writeSections(&b, review, ReviewFields)
	b.WriteString("\nEnhancement proposals:\n\n")
	writeSections(&b, enhancement, EnhancementFields)
	b.WriteString("\nValidation assessment:\n\n")
	writeSections(&b, validation, ValidationFields)
	b.WriteString("\nProduce the consolidated final report.")
	return b.String()
}

// writeSections 按字段顺序将阶段结果渲染为带标题的文本
func writeSections(b *strings.Builder, result StageResult, fields []string) {
	for _, field := range fields {
		value := result[field]
		if value == "" {
			continue
		}
		fmt.Fprintf(b, "### %s\n%s\n\n", headingTitle(field), value)
	}
}

// headingTitle 将字段名转换为标题形式，如 core_principles -> Core Principles
func headingTitle(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
