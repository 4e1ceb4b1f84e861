package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/internal/models"
)

// 各阶段在Markdown报告中的固定输出顺序
var reportStageOrder = []string{"review", "enhancement", "validation", "final_report"}

// ResultWriter 流水线结果写入器
// 将一次运行的结果落盘为JSON和Markdown两种格式
type ResultWriter struct {
	dir    string         // 结果输出目录
	logger *logrus.Logger // 日志记录器
}

// NewResultWriter 创建结果写入器
func NewResultWriter(dir string, logger *logrus.Logger) *ResultWriter {
	if dir == "" {
		dir = "./results"
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ResultWriter{
		dir:    dir,
		logger: logger,
	}
}

// Save 保存流水线结果
// 返回JSON文件和Markdown报告的路径
func (w *ResultWriter) Save(result *models.PipelineResult) (string, string, error) {
	if result == nil || result.StandardID == "" {
		return "", "", fmt.Errorf("invalid pipeline result")
	}

	// 确保输出目录存在
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create results directory: %w", err)
	}

	jsonPath := filepath.Join(w.dir, result.StandardID+"_results.json")
	mdPath := filepath.Join(w.dir, result.StandardID+"_final_report.md")

	// 写入JSON结果，顶层键固定为四个阶段名
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal pipeline result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write json result: %w", err)
	}

	// 写入Markdown报告
	report := w.renderMarkdown(result)
	if err := os.WriteFile(mdPath, []byte(report), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write markdown report: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"standard_id": result.StandardID,
		"json_path":   jsonPath,
		"md_path":     mdPath,
	}).Info("Pipeline results saved")

	return jsonPath, mdPath, nil
}

// renderMarkdown 将流水线结果渲染为Markdown报告
func (w *ResultWriter) renderMarkdown(result *models.PipelineResult) string {
	stages := map[string]map[string]string{
		"review":       result.Review,
		"enhancement":  result.Enhancement,
		"validation":   result.Validation,
		"final_report": result.FinalReport,
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s Review Report\n\n", result.StandardID))

	for _, stage := range reportStageOrder {
		fields := stages[stage]
		if len(fields) == 0 {
			continue
		}

		b.WriteString(fmt.Sprintf("## %s\n\n", titleCase(stage)))

		// 字段按名称排序，保证输出确定性
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := strings.TrimSpace(fields[key])
			if value == "" {
				continue
			}

			// 单字段阶段不需要再加小节标题
			if len(fields) > 1 {
				b.WriteString(fmt.Sprintf("### %s\n\n", titleCase(key)))
			}
			b.WriteString(value)
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

// titleCase 将下划线分隔的字段名转换为标题形式
// 例如 core_principles -> Core Principles
func titleCase(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
