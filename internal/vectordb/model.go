package vectordb

import (
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrChunkNotFound    = errors.New("chunk not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid chunk ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Chunk 标准文档分块模型
// 包含向量表示及其元数据
type Chunk struct {
	ID         string                 `json:"id"`          // 唯一标识符，格式为 <标准名>_<序号>
	StandardID string                 `json:"standard_id"` // 所属标准标识符
	Position   int                    `json:"position"`    // 在原文档中的分块序号
	Text       string                 `json:"text"`        // 原始文本内容
	Vector     []float32              `json:"vector"`      // 向量表示
	CreatedAt  time.Time              `json:"created_at"`  // 创建时间
	Metadata   map[string]interface{} `json:"metadata"`    // 附加元数据
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Chunk    Chunk   // 分块对象
	Score    float32 // 相似度得分
	Distance float32 // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	StandardIDs []string               // 按标准标识符过滤
	Metadata    map[string]interface{} // 按元数据过滤
	MinScore    float32                // 最小相似度分数
	MaxResults  int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量数据库仓库接口
// 定义标准分块向量数据的基本操作
type Repository interface {
	// Add 添加单个分块，ID已存在时覆盖旧数据
	Add(chunk Chunk) error

	// AddBatch 批量添加分块，已存在的ID覆盖旧数据
	AddBatch(chunks []Chunk) error

	// Get 获取单个分块
	Get(id string) (Chunk, error)

	// GetByStandardID 获取指定标准的所有分块，按分块序号升序排列
	GetByStandardID(standardID string) ([]Chunk, error)

	// ListStandards 列出所有已入库标准的标识符，按字典序排列
	ListStandards() ([]string, error)

	// Delete 删除单个分块
	Delete(id string) error

	// DeleteByStandardID 删除指定标准的所有分块
	DeleteByStandardID(standardID string) error

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取分块总数
	Count() (int, error)

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 关闭数据库连接并持久化数据
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string       // 数据库类型，如 "file", "faiss"
	Path              string       // 数据库文件路径
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	CreateIfNotExists bool         // 如果不存在是否创建
	InMemory          bool         // 是否仅在内存中运行
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用文件实现
		factory = NewFileRepository
	}
	return factory(config)
}
