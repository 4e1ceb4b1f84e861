package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/standards-review-system/internal/agents"
	"github.com/fyerfyer/standards-review-system/internal/llm"
	"github.com/fyerfyer/standards-review-system/internal/models"
	"github.com/fyerfyer/standards-review-system/internal/repository"
	"github.com/fyerfyer/standards-review-system/internal/vectordb"
)

// PipelineService 审查流水线服务
// 负责按固定顺序执行审查、增强、验证和报告四个阶段
type PipelineService struct {
	vectorDB     vectordb.Repository           // 向量数据库，标准内容的事实来源
	repo         repository.StandardRepository // 运行记录存储
	resultWriter *ResultWriter                 // 结果写入器

	review      agents.Agent // 审查代理
	enhancement agents.Agent // 增强代理
	validation  agents.Agent // 验证代理
	finalReport agents.Agent // 报告代理

	reviewModel string        // 审查阶段使用的模型名
	reportModel string        // 报告阶段使用的模型名
	timeout     time.Duration // 单次流水线超时时间
	logger      *logrus.Logger
}

// PipelineOption 流水线服务配置选项
type PipelineOption func(*PipelineService)

// NewPipelineService 创建审查流水线服务
// 审查和增强阶段使用reviewClient，验证和报告阶段使用reportClient
func NewPipelineService(
	vectorDB vectordb.Repository,
	reviewClient llm.Client,
	reportClient llm.Client,
	opts ...PipelineOption,
) *PipelineService {
	srv := &PipelineService{
		vectorDB:     vectorDB,
		review:       agents.NewReviewAgent(reviewClient),
		enhancement:  agents.NewEnhancementAgent(reviewClient),
		validation:   agents.NewValidationAgent(reportClient),
		finalReport:  agents.NewFinalReportAgent(reportClient),
		reviewModel:  reviewClient.Name(),
		reportModel:  reportClient.Name(),
		resultWriter: NewResultWriter("", nil),
		timeout:      time.Minute * 30,
		logger:       logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithPipelineLogger 设置日志记录器
func WithPipelineLogger(logger *logrus.Logger) PipelineOption {
	return func(s *PipelineService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipelineRepository 设置运行记录仓储
func WithPipelineRepository(repo repository.StandardRepository) PipelineOption {
	return func(s *PipelineService) {
		s.repo = repo
	}
}

// WithResultWriter 设置结果写入器
func WithResultWriter(writer *ResultWriter) PipelineOption {
	return func(s *PipelineService) {
		if writer != nil {
			s.resultWriter = writer
		}
	}
}

// WithPipelineTimeout 设置流水线超时时间
func WithPipelineTimeout(timeout time.Duration) PipelineOption {
	return func(s *PipelineService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithAgents 替换流水线的四个代理
// 主要用于测试
func WithAgents(review, enhancement, validation, finalReport agents.Agent) PipelineOption {
	return func(s *PipelineService) {
		s.review = review
		s.enhancement = enhancement
		s.validation = validation
		s.finalReport = finalReport
	}
}

// ListStandards 列出所有可供审查的标准
// 以向量数据库中的内容为准
func (s *PipelineService) ListStandards() ([]string, error) {
	return s.vectorDB.ListStandards()
}

// Process 对单个标准执行完整流水线
// 任一阶段失败立即终止，后续阶段不再执行
func (s *PipelineService) Process(ctx context.Context, standardID string) (*models.PipelineResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.WithField("standard_id", standardID).Info("Starting review pipeline")

	// 从向量数据库重建标准文档
	doc, err := s.loadStandard(standardID)
	if err != nil {
		return nil, err
	}

	// 创建运行记录
	run := s.createRun(standardID)

	input := agents.Input{Document: doc}
	result := &models.PipelineResult{StandardID: standardID}

	// 阶段一：审查
	input.Review, err = s.runStage(ctx, s.review, input, run, models.RunReviewed)
	if err != nil {
		return nil, err
	}
	result.Review = input.Review

	// 阶段二：增强
	input.Enhancement, err = s.runStage(ctx, s.enhancement, input, run, models.RunEnhanced)
	if err != nil {
		return nil, err
	}
	result.Enhancement = input.Enhancement

	// 阶段三：验证
	input.Validation, err = s.runStage(ctx, s.validation, input, run, models.RunValidated)
	if err != nil {
		return nil, err
	}
	result.Validation = input.Validation

	// 阶段四：最终报告
	finalReport, err := s.runStage(ctx, s.finalReport, input, run, models.RunReported)
	if err != nil {
		return nil, err
	}
	result.FinalReport = finalReport

	// 结果落盘
	jsonPath, mdPath, err := s.resultWriter.Save(result)
	if err != nil {
		s.failRun(run, fmt.Sprintf("failed to save results: %v", err))
		return nil, fmt.Errorf("failed to save results: %w", err)
	}

	s.completeRun(run, result)

	s.logger.WithFields(logrus.Fields{
		"standard_id": standardID,
		"json_path":   jsonPath,
		"md_path":     mdPath,
	}).Info("Review pipeline completed")

	return result, nil
}

// ProcessAll 对所有已入库标准依次执行流水线
// 单个标准失败不影响其他标准，返回失败的标准列表
func (s *PipelineService) ProcessAll(ctx context.Context) ([]string, error) {
	standards, err := s.ListStandards()
	if err != nil {
		return nil, fmt.Errorf("failed to list standards: %w", err)
	}

	var failed []string
	for _, standardID := range standards {
		if _, err := s.Process(ctx, standardID); err != nil {
			s.logger.WithError(err).WithField("standard_id", standardID).Error("Pipeline failed for standard")
			failed = append(failed, standardID)
		}
	}

	return failed, nil
}

// GetLatestRun 获取标准最近一次流水线运行记录
func (s *PipelineService) GetLatestRun(standardID string) (*models.PipelineRun, error) {
	if s.repo == nil {
		return nil, models.ErrRunNotFound
	}
	return s.repo.GetLatestRun(standardID)
}

// loadStandard 从向量数据库重建标准文档
// 分块按序号升序拼接，未找到任何分块视为标准不存在
func (s *PipelineService) loadStandard(standardID string) (models.StandardDocument, error) {
	chunks, err := s.vectorDB.GetByStandardID(standardID)
	if err != nil {
		return models.StandardDocument{}, fmt.Errorf("failed to load standard chunks: %w", err)
	}

	if len(chunks) == 0 {
		return models.StandardDocument{}, models.ErrStandardNotFound
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	return models.StandardDocument{
		Name:    standardID,
		Content: strings.Join(texts, "\n"),
	}, nil
}

// runStage 执行单个阶段并推进运行记录
func (s *PipelineService) runStage(ctx context.Context, agent agents.Agent, input agents.Input, run *models.PipelineRun, stage models.RunStage) (agents.StageResult, error) {
	s.logger.WithFields(logrus.Fields{
		"standard_id": input.Document.Name,
		"stage":       agent.Stage(),
		"agent":       agent.Name(),
	}).Info("Executing pipeline stage")

	result, err := agent.Execute(ctx, input)
	if err != nil {
		s.failRun(run, err.Error())
		return nil, fmt.Errorf("pipeline stage %s failed: %w", agent.Stage(), err)
	}

	s.advanceRun(run, stage)
	return result, nil
}

// createRun 创建流水线运行记录
// 仓储不可用时记录警告并返回nil，不中断流水线
func (s *PipelineService) createRun(standardID string) *models.PipelineRun {
	if s.repo == nil {
		return nil
	}

	run := &models.PipelineRun{
		StandardID:  standardID,
		Stage:       models.RunPending,
		ReviewModel: s.reviewModel,
		ReportModel: s.reportModel,
		StartedAt:   time.Now(),
	}

	if err := s.repo.CreateRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to create pipeline run record")
		return nil
	}

	return run
}

// advanceRun 将运行记录推进到指定阶段
func (s *PipelineService) advanceRun(run *models.PipelineRun, stage models.RunStage) {
	if run == nil {
		return
	}

	run.Stage = stage
	if err := s.repo.UpdateRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to update pipeline run record")
	}
}

// failRun 将运行记录标记为失败
func (s *PipelineService) failRun(run *models.PipelineRun, errMsg string) {
	if run == nil {
		return
	}

	now := time.Now()
	run.Stage = models.RunFailed
	run.Error = errMsg
	run.CompletedAt = &now
	if err := s.repo.UpdateRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to mark pipeline run as failed")
	}
}

// completeRun 将运行记录标记为完成并附带聚合结果
func (s *PipelineService) completeRun(run *models.PipelineRun, result *models.PipelineResult) {
	if run == nil {
		return
	}

	now := time.Now()
	run.Stage = models.RunReported
	run.CompletedAt = &now

	if data, err := json.Marshal(result); err == nil {
		run.Result = data
	}

	if err := s.repo.UpdateRun(run); err != nil {
		s.logger.WithError(err).Warn("Failed to complete pipeline run record")
	}
}
