package model

import (
	"time"

	"github.com/fyerfyer/standards-review-system/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// StandardUploadResponse 标准上传响应
type StandardUploadResponse struct {
	StandardID string `json:"standard_id"` // 标准ID
	FileName   string `json:"filename"`    // 文件名
	Status     string `json:"status"`      // 标准状态
	ChunkCount int    `json:"chunk_count"` // 分块数量
}

// StandardStatusResponse 标准状态查询响应
type StandardStatusResponse struct {
	StandardID string `json:"standard_id"`     // 标准ID
	Status     string `json:"status"`          // 处理状态
	FileName   string `json:"filename"`        // 文件名
	Progress   int    `json:"progress"`        // 处理进度（0-100）
	ChunkCount int    `json:"chunk_count"`     // 分块数量
	Error      string `json:"error,omitempty"` // 错误信息（如果有）
	UploadedAt string `json:"uploaded_at"`     // 上传时间
	UpdatedAt  string `json:"updated_at"`      // 更新时间
}

// StandardInfo 标准信息
type StandardInfo struct {
	StandardID string    `json:"standard_id"` // 标准ID
	FileName   string    `json:"filename"`    // 文件名
	Status     string    `json:"status"`      // 状态
	ChunkCount int       `json:"chunk_count"` // 分块数量
	UploadedAt time.Time `json:"uploaded_at"` // 上传时间
}

// StandardListResponse 标准列表响应
type StandardListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Standards []StandardInfo `json:"standards"` // 标准列表
}

// StandardDeleteResponse 标准删除响应
type StandardDeleteResponse struct {
	Success    bool   `json:"success"`     // 是否成功
	StandardID string `json:"standard_id"` // 标准ID
}

// ReviewResponse 审查流水线执行响应
type ReviewResponse struct {
	StandardID string                 `json:"standard_id"` // 标准ID
	Result     *models.PipelineResult `json:"result"`      // 四个阶段的聚合结果
}

// ReviewRunResponse 审查运行记录响应
type ReviewRunResponse struct {
	StandardID  string `json:"standard_id"`            // 标准ID
	Stage       string `json:"stage"`                  // 已到达的阶段
	ReviewModel string `json:"review_model"`           // 审查阶段模型
	ReportModel string `json:"report_model"`           // 报告阶段模型
	Error       string `json:"error,omitempty"`        // 错误信息（如果失败）
	StartedAt   string `json:"started_at"`             // 开始时间
	CompletedAt string `json:"completed_at,omitempty"` // 完成时间
}

// ReviewableListResponse 可审查标准列表响应
type ReviewableListResponse struct {
	Total     int      `json:"total"`     // 总数量
	Standards []string `json:"standards"` // 已入库标准名列表
}

// NewStandardInfo 从标准模型构建响应信息
func NewStandardInfo(standard *models.Standard) StandardInfo {
	return StandardInfo{
		StandardID: standard.ID,
		FileName:   standard.FileName,
		Status:     string(standard.Status),
		ChunkCount: standard.ChunkCount,
		UploadedAt: standard.UploadedAt,
	}
}
