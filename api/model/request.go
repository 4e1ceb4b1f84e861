package model

import (
	"mime/multipart"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// StandardUploadRequest 标准文档上传请求
type StandardUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 文件对象
}

// StandardStatusRequest 标准状态查询请求
type StandardStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 标准ID
}

// StandardListRequest 标准列表请求
type StandardListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty"` // 标准状态过滤
}

// StandardDeleteRequest 标准删除请求
type StandardDeleteRequest struct {
	ID string `uri:"id" binding:"required"` // 标准ID
}

// ReviewRequest 审查流水线请求
type ReviewRequest struct {
	ID string `uri:"id" binding:"required"` // 标准ID
}
