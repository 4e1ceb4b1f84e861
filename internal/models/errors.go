package models

import "errors"

var (
	// ErrStandardNotFound 标准不存在错误
	ErrStandardNotFound = errors.New("standard not found")

	// ErrRunNotFound 流水线运行记录不存在错误
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrInvalidStandardStatus 无效的标准状态错误
	ErrInvalidStandardStatus = errors.New("invalid standard status")
)
