package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/standards-review-system/internal/database"
	"github.com/fyerfyer/standards-review-system/internal/models"
)

// standardRepository 标准仓储实现
type standardRepository struct {
	db *gorm.DB // 数据库连接
}

// NewStandardRepository 创建标准仓储实例
func NewStandardRepository() StandardRepository {
	return &standardRepository{
		db: database.MustDB(),
	}
}

// NewStandardRepositoryWithDB 使用指定的数据库连接创建标准仓储实例
func NewStandardRepositoryWithDB(db *gorm.DB) StandardRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &standardRepository{
		db: db,
	}
}

// Create 创建标准记录
func (r *standardRepository) Create(standard *models.Standard) error {
	if standard.ID == "" {
		return errors.New("standard ID cannot be empty")
	}

	return r.db.Create(standard).Error
}

// Update 更新标准记录
func (r *standardRepository) Update(standard *models.Standard) error {
	if standard.ID == "" {
		return errors.New("standard ID cannot be empty")
	}

	return r.db.Save(standard).Error
}

// GetByID 根据标识符获取标准
func (r *standardRepository) GetByID(id string) (*models.Standard, error) {
	var standard models.Standard
	err := r.db.Where("id = ?", id).First(&standard).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrStandardNotFound
		}
		return nil, err
	}
	return &standard, nil
}

// List 列出标准列表，支持分页和筛选
func (r *standardRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Standard, int64, error) {
	var standards []*models.Standard
	var total int64

	query := r.db.Model(&models.Standard{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			statusStr := fmt.Sprintf("%v", status)
			if statusStr != "" {
				query = query.Where("status = ?", statusStr)
			}
		}

		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&standards).Error
	if err != nil {
		return nil, 0, err
	}

	return standards, total, nil
}

// Delete 删除标准及其分块和运行记录
func (r *standardRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("standard_id = ?", id).Delete(&models.StandardChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("standard_id = ?", id).Delete(&models.PipelineRun{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Standard{}).Error
	})
}

// UpdateStatus 更新标准状态
func (r *standardRepository) UpdateStatus(id string, status models.StandardStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 进入终态时记录处理完成时间
	if status == models.StandardCompleted || status == models.StandardFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	return r.db.Model(&models.Standard{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateProgress 更新标准处理进度
func (r *standardRepository) UpdateProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return r.db.Model(&models.Standard{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":   progress,
			"updated_at": time.Now(),
		}).Error
}

// SaveChunks 批量保存标准分块记录
func (r *standardRepository) SaveChunks(chunks []*models.StandardChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// GetChunks 获取标准的所有分块记录，按序号升序
func (r *standardRepository) GetChunks(standardID string) ([]*models.StandardChunk, error) {
	var chunks []*models.StandardChunk
	err := r.db.Where("standard_id = ?", standardID).
		Order("position ASC").
		Find(&chunks).Error
	return chunks, err
}

// CountChunks 统计标准的分块数量
func (r *standardRepository) CountChunks(standardID string) (int, error) {
	var count int64
	err := r.db.Model(&models.StandardChunk{}).
		Where("standard_id = ?", standardID).
		Count(&count).Error
	return int(count), err
}

// DeleteChunks 删除标准的所有分块记录
func (r *standardRepository) DeleteChunks(standardID string) error {
	return r.db.Where("standard_id = ?", standardID).
		Delete(&models.StandardChunk{}).Error
}

// CreateRun 创建流水线运行记录
func (r *standardRepository) CreateRun(run *models.PipelineRun) error {
	if run.StandardID == "" {
		return errors.New("run standard ID cannot be empty")
	}
	if run.Stage == "" {
		run.Stage = models.RunPending
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	return r.db.Create(run).Error
}

// UpdateRun 更新流水线运行记录
func (r *standardRepository) UpdateRun(run *models.PipelineRun) error {
	if run.ID == 0 {
		return errors.New("run ID cannot be zero")
	}

	return r.db.Save(run).Error
}

// GetLatestRun 获取标准最近一次流水线运行记录
func (r *standardRepository) GetLatestRun(standardID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := r.db.Where("standard_id = ?", standardID).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns 列出标准的所有流水线运行记录，按开始时间降序
func (r *standardRepository) ListRuns(standardID string) ([]*models.PipelineRun, error) {
	var runs []*models.PipelineRun
	err := r.db.Where("standard_id = ?", standardID).
		Order("started_at DESC").
		Find(&runs).Error
	return runs, err
}
