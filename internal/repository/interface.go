package repository

import "github.com/fyerfyer/standards-review-system/internal/models"

// StandardRepository 标准文档仓储接口
// 负责标准元数据、分块记录和流水线运行记录的存储和检索
type StandardRepository interface {
	// Create 创建标准记录
	Create(standard *models.Standard) error

	// Update 更新标准记录
	Update(standard *models.Standard) error

	// GetByID 根据标识符获取标准
	GetByID(id string) (*models.Standard, error)

	// List 列出标准列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Standard, int64, error)

	// Delete 删除标准及其分块记录
	Delete(id string) error

	// UpdateStatus 更新标准状态
	UpdateStatus(id string, status models.StandardStatus, errorMsg string) error

	// UpdateProgress 更新标准处理进度
	UpdateProgress(id string, progress int) error

	// SaveChunks 批量保存标准分块记录
	SaveChunks(chunks []*models.StandardChunk) error

	// GetChunks 获取标准的所有分块记录，按序号升序
	GetChunks(standardID string) ([]*models.StandardChunk, error)

	// CountChunks 统计标准的分块数量
	CountChunks(standardID string) (int, error)

	// DeleteChunks 删除标准的所有分块记录
	DeleteChunks(standardID string) error

	// CreateRun 创建流水线运行记录
	CreateRun(run *models.PipelineRun) error

	// UpdateRun 更新流水线运行记录
	UpdateRun(run *models.PipelineRun) error

	// GetLatestRun 获取标准最近一次流水线运行记录
	GetLatestRun(standardID string) (*models.PipelineRun, error)

	// ListRuns 列出标准的所有流水线运行记录，按开始时间降序
	ListRuns(standardID string) ([]*models.PipelineRun, error)
}
