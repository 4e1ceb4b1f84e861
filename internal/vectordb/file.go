package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileRepository 文件持久化向量仓库实现
// 数据常驻内存，变更落盘为JSON快照，进程重启后可恢复
type FileRepository struct {
	mu            sync.RWMutex
	chunks        map[string]Chunk    // 分块存储，ID到分块的映射
	standardToIDs map[string][]string // 标准标识符到分块ID的映射
	path          string              // 快照文件路径，为空时仅内存运行
	dimension     int                 // 向量维度
	distType      DistanceType        // 距离计算类型
	dirty         bool                // 是否有未落盘的变更
}

// fileSnapshot 落盘快照格式
type fileSnapshot struct {
	Dimension     int                 `json:"dimension"`
	DistanceType  DistanceType        `json:"distance_type"`
	Chunks        map[string]Chunk    `json:"chunks"`
	StandardToIDs map[string][]string `json:"standard_to_ids"`
	SavedAt       time.Time           `json:"saved_at"`
}

// NewFileRepository 创建文件持久化向量仓库
// 如果快照文件已存在则从中恢复数据
func NewFileRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine // 默认使用余弦距离
	}

	path := config.Path
	if config.InMemory {
		path = ""
	}

	repo := &FileRepository{
		chunks:        make(map[string]Chunk),
		standardToIDs: make(map[string][]string),
		path:          path,
		dimension:     config.Dimension,
		distType:      distType,
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
		if err := repo.load(); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// Add 添加单个分块，ID已存在时覆盖旧数据
func (r *FileRepository) Add(chunk Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insert(&chunk); err != nil {
		return err
	}
	return r.save()
}

// AddBatch 批量添加分块，已存在的ID覆盖旧数据
func (r *FileRepository) AddBatch(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// 使用单个锁进行批处理，避免多次加解锁开销
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range chunks {
		if err := r.insert(&chunks[i]); err != nil {
			return fmt.Errorf("invalid chunk %s: %v", chunks[i].ID, err)
		}
	}
	return r.save()
}

// insert 写入单个分块，调用者须持有写锁
func (r *FileRepository) insert(chunk *Chunk) error {
	if chunk.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(chunk.Vector, r.dimension); err != nil {
		return err
	}

	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	if chunk.Metadata == nil {
		chunk.Metadata = make(map[string]interface{})
	}

	// 对于余弦距离，先对向量进行归一化处理
	if r.distType == Cosine {
		chunk.Vector = normalizeVector(chunk.Vector)
	}

	// 覆盖写入时不重复登记ID
	_, exists := r.chunks[chunk.ID]
	r.chunks[chunk.ID] = *chunk
	if !exists {
		r.standardToIDs[chunk.StandardID] = append(r.standardToIDs[chunk.StandardID], chunk.ID)
	}
	r.dirty = true

	return nil
}

// Get 获取单个分块
func (r *FileRepository) Get(id string) (Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chunk, exists := r.chunks[id]
	if !exists {
		return Chunk{}, ErrChunkNotFound
	}

	return chunk, nil
}

// GetByStandardID 获取指定标准的所有分块，按分块序号升序排列
func (r *FileRepository) GetByStandardID(standardID string) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, exists := r.standardToIDs[standardID]
	if !exists || len(ids) == 0 {
		return []Chunk{}, nil
	}

	chunks := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := r.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})

	return chunks, nil
}

// ListStandards 列出所有已入库标准的标识符，按字典序排列
func (r *FileRepository) ListStandards() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	standards := make([]string, 0, len(r.standardToIDs))
	for id, chunkIDs := range r.standardToIDs {
		if len(chunkIDs) > 0 {
			standards = append(standards, id)
		}
	}
	sort.Strings(standards)

	return standards, nil
}

// Delete 删除单个分块
func (r *FileRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunk, exists := r.chunks[id]
	if !exists {
		return ErrChunkNotFound
	}

	delete(r.chunks, id)
	r.removeFromStandard(chunk.StandardID, id)
	r.dirty = true

	return r.save()
}

// DeleteByStandardID 删除指定标准的所有分块
func (r *FileRepository) DeleteByStandardID(standardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, exists := r.standardToIDs[standardID]
	if !exists {
		return nil
	}

	for _, id := range ids {
		delete(r.chunks, id)
	}
	delete(r.standardToIDs, standardID)
	r.dirty = true

	return r.save()
}

// removeFromStandard 从标准索引中移除分块ID，调用者须持有写锁
func (r *FileRepository) removeFromStandard(standardID, id string) {
	ids, ok := r.standardToIDs[standardID]
	if !ok {
		return
	}

	updated := make([]string, 0, len(ids)-1)
	for _, existing := range ids {
		if existing != id {
			updated = append(updated, existing)
		}
	}

	if len(updated) == 0 {
		delete(r.standardToIDs, standardID)
	} else {
		r.standardToIDs[standardID] = updated
	}
}

// Search 相似度搜索
func (r *FileRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	// 对于余弦距离，对查询向量进行归一化处理
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// 优先使用标准索引缩小候选集
	var candidates []Chunk
	if len(filter.StandardIDs) > 0 {
		for _, standardID := range filter.StandardIDs {
			for _, id := range r.standardToIDs[standardID] {
				if chunk, ok := r.chunks[id]; ok && matchMetadata(chunk.Metadata, filter.Metadata) {
					candidates = append(candidates, chunk)
				}
			}
		}
	} else {
		candidates = make([]Chunk, 0, len(r.chunks))
		for _, chunk := range r.chunks {
			if matchMetadata(chunk.Metadata, filter.Metadata) {
				candidates = append(candidates, chunk)
			}
		}
	}

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, chunk := range candidates {
		dist, err := ComputeDistance(vector, chunk.Vector, r.distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance: %v", err)
		}

		score := DistanceToScore(dist, r.distType)
		if score >= filter.MinScore {
			results = append(results, SearchResult{
				Chunk:    chunk,
				Score:    score,
				Distance: dist,
			})
		}
	}

	SortSearchResults(results)

	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}

	return results, nil
}

// Count 获取分块总数
func (r *FileRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.chunks), nil
}

// GetDimension 返回向量维数
func (r *FileRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭仓库并落盘未保存的变更
func (r *FileRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save()
}

// save 将快照写入文件，调用者须持有写锁
func (r *FileRepository) save() error {
	if r.path == "" || !r.dirty {
		return nil
	}

	snapshot := fileSnapshot{
		Dimension:     r.dimension,
		DistanceType:  r.distType,
		Chunks:        r.chunks,
		StandardToIDs: r.standardToIDs,
		SavedAt:       time.Now(),
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	// 先写临时文件再改名，避免写入中断损坏快照
	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %v", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %v", err)
	}

	r.dirty = false
	return nil
}

// load 从快照文件恢复数据
func (r *FileRepository) load() error {
	if r.path == "" || !fileExists(r.path) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %v", err)
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %v", err)
	}

	if snapshot.Dimension != 0 && snapshot.Dimension != r.dimension {
		return fmt.Errorf("snapshot dimension mismatch: expected %d, got %d", r.dimension, snapshot.Dimension)
	}

	if snapshot.Chunks != nil {
		r.chunks = snapshot.Chunks
	}
	if snapshot.StandardToIDs != nil {
		r.standardToIDs = snapshot.StandardToIDs
	}

	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// 在包初始化时注册文件仓库
func init() {
	RegisterRepository("file", NewFileRepository)
	RegisterRepository("memory", NewFileRepository)
}
