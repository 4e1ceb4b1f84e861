package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StandardStatus 标准文档入库状态类型
type StandardStatus string

const (
	// StandardUploaded 标准已上传，等待入库
	StandardUploaded StandardStatus = "uploaded"
	// StandardProcessing 标准入库处理中
	StandardProcessing StandardStatus = "processing"
	// StandardCompleted 标准入库完成
	StandardCompleted StandardStatus = "completed"
	// StandardFailed 标准入库失败
	StandardFailed StandardStatus = "failed"
)

// Standard 金融标准文档数据模型
// 标识符为源文件名去掉扩展名
type Standard struct {
	ID          string         `gorm:"primaryKey"`         // 标准ID（文件名去扩展名）
	FileName    string         `gorm:"not null"`           // 原始文件名
	FileType    string         `gorm:"size:20"`            // 文件类型
	FilePath    string         `gorm:"not null"`           // 文件存储路径
	FileSize    int64          `gorm:"not null;default:0"` // 文件大小（字节）
	Status      StandardStatus `gorm:"not null;index"`     // 入库状态
	ChunkCount  int            `gorm:"not null;default:0"` // 分块数量
	Progress    int            `gorm:"not null;default:0"` // 入库进度（0-100）
	Error       string         `gorm:"type:text"`          // 错误信息
	UploadedAt  time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt *time.Time     `gorm:"index"`              // 入库完成时间
	UpdatedAt   time.Time      `gorm:"not null;index"`     // 更新时间
	Metadata    datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (s *Standard) BeforeCreate(tx *gorm.DB) (err error) {
	if s.UploadedAt.IsZero() {
		s.UploadedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (s *Standard) BeforeUpdate(tx *gorm.DB) (err error) {
	s.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Standard) TableName() string {
	return "standards"
}

// StandardChunk 标准文档分块数据模型
// 用于在数据库中跟踪已入库的文本分块
type StandardChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"` // 主键ID
	StandardID string    `gorm:"not null;index"`           // 所属标准ID
	ChunkID    string    `gorm:"not null;uniqueIndex"`     // 分块唯一ID（<标准ID>_<序号>）
	Position   int       `gorm:"not null"`                 // 分块序号
	Text       string    `gorm:"type:text;not null"`       // 分块文本内容
	CreatedAt  time.Time `gorm:"not null"`                 // 创建时间
	UpdatedAt  time.Time `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *StandardChunk) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// TableName 明确指定表名
func (StandardChunk) TableName() string {
	return "standard_chunks"
}

// RunStage 流水线运行阶段
// 各阶段严格顺序推进，任一阶段失败转入failed
type RunStage string

const (
	// RunPending 等待处理
	RunPending RunStage = "pending"
	// RunReviewed 审查阶段完成
	RunReviewed RunStage = "reviewed"
	// RunEnhanced 增强阶段完成
	RunEnhanced RunStage = "enhanced"
	// RunValidated 验证阶段完成
	RunValidated RunStage = "validated"
	// RunReported 报告阶段完成，流水线结束
	RunReported RunStage = "reported"
	// RunFailed 流水线失败
	RunFailed RunStage = "failed"
)

// PipelineRun 流水线运行记录
// 每处理一次标准产生一条运行记录
type PipelineRun struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	StandardID  string         `gorm:"not null;index"`           // 处理的标准ID
	Stage       RunStage       `gorm:"not null;size:20;index"`   // 当前阶段
	Error       string         `gorm:"type:text"`                // 错误信息
	Result      datatypes.JSON `gorm:"type:json"`                // 流水线结果，JSON格式
	ReviewModel string         `gorm:"size:50"`                  // 审查阶段使用的模型
	ReportModel string         `gorm:"size:50"`                  // 报告阶段使用的模型
	StartedAt   time.Time      `gorm:"not null"`                 // 开始时间
	CompletedAt *time.Time     `gorm:""`                         // 完成时间
	CreatedAt   time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *PipelineRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
