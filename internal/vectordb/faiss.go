package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository 实现基于Faiss的向量仓库
type FaissRepository struct {
	mu             sync.RWMutex
	index          faiss.Index
	chunks         map[string]Chunk
	standardToIDs  map[string][]string
	idToPosition   map[string]int
	indexPath      string
	metaPath       string
	dimension      int
	distanceType   DistanceType
	saveOnClose    bool
	autoSave       bool
	autoSaveCount  int
	operationCount int
}

// NewFaissRepository 创建新的Faiss向量仓库
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	if config.Path != "" && !config.InMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	indexPath := config.Path
	metaPath := ""
	if indexPath != "" {
		metaPath = indexPath + ".meta.json"
	}

	repo := &FaissRepository{
		chunks:        make(map[string]Chunk),
		standardToIDs: make(map[string][]string),
		idToPosition:  make(map[string]int),
		indexPath:     indexPath,
		metaPath:      metaPath,
		dimension:     config.Dimension,
		distanceType:  distType,
		saveOnClose:   true,
		autoSave:      true,
		autoSaveCount: 100,
	}

	var index faiss.Index
	var err error

	// 尝试从文件加载索引
	if indexPath != "" && !config.InMemory && fileExists(indexPath) {
		index, err = faiss.ReadIndex(indexPath, 0)
		if err != nil {
			if config.CreateIfNotExists {
				index, err = createFaissIndex(config.Dimension, distType)
				if err != nil {
					return nil, fmt.Errorf("failed to create Faiss index: %v", err)
				}
			} else {
				return nil, fmt.Errorf("failed to read index file: %v", err)
			}
		} else {
			if err := repo.loadMetadata(metaPath); err != nil {
				return nil, fmt.Errorf("failed to load chunks metadata: %v", err)
			}
		}
	} else {
		index, err = createFaissIndex(config.Dimension, distType)
		if err != nil {
			return nil, fmt.Errorf("failed to create Faiss index: %v", err)
		}
	}

	repo.index = index
	return repo, nil
}

// indexScore 将索引搜索返回的原始度量值换算为评分和距离
// 余弦度量使用内积索引，对归一化向量返回的原始值已是余弦相似度而非距离
func indexScore(raw float32, distType DistanceType) (score, distance float32) {
	if distType == Cosine {
		return raw, 1 - raw
	}
	return DistanceToScore(raw, distType), raw
}

// createFaissIndex 创建Faiss索引
func createFaissIndex(dimension int, distType DistanceType) (faiss.Index, error) {
	var metric int
	switch distType {
	case Cosine, DotProduct:
		metric = faiss.MetricInnerProduct
	case Euclidean:
		metric = faiss.MetricL2
	default:
		metric = faiss.MetricL2
	}
	return faiss.NewIndexFlat(dimension, metric)
}

// Add 添加单个分块到仓库，ID已存在时覆盖旧数据
func (r *FaissRepository) Add(chunk Chunk) error {
	if err := ValidateVector(chunk.Vector, r.dimension); err != nil {
		return err
	}
	if r.distanceType == Cosine {
		chunk.Vector = normalizeVector(chunk.Vector)
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	if chunk.Metadata == nil {
		chunk.Metadata = make(map[string]interface{})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insert(chunk); err != nil {
		return err
	}

	r.operationCount++
	if r.autoSave && r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// AddBatch 批量添加分块到仓库，已存在的ID覆盖旧数据
func (r *FaissRepository) AddBatch(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := ValidateVector(chunks[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for chunk %s: %v", chunks[i].ID, err)
		}
		if r.distanceType == Cosine {
			chunks[i].Vector = normalizeVector(chunks[i].Vector)
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = time.Now()
		}
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]interface{})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, chunk := range chunks {
		if err := r.insert(chunk); err != nil {
			return err
		}
	}

	r.operationCount += len(chunks)
	if r.autoSave && r.operationCount >= r.autoSaveCount {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("auto-save failed: %v", err)
		}
		r.operationCount = 0
	}
	return nil
}

// insert 写入单个分块，调用者须持有写锁
// 覆盖写入时旧向量在索引中成为孤儿位置，由位置映射屏蔽
func (r *FaissRepository) insert(chunk Chunk) error {
	nextPos := int(r.index.Ntotal())
	if err := r.index.Add(chunk.Vector); err != nil {
		return fmt.Errorf("failed to add vector to index: %v", err)
	}

	_, exists := r.chunks[chunk.ID]
	r.chunks[chunk.ID] = chunk
	r.idToPosition[chunk.ID] = nextPos
	if !exists {
		r.standardToIDs[chunk.StandardID] = append(r.standardToIDs[chunk.StandardID], chunk.ID)
	}
	return nil
}

// Get 获取单个分块
func (r *FaissRepository) Get(id string) (Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunk, exists := r.chunks[id]
	if !exists {
		return Chunk{}, ErrChunkNotFound
	}
	return chunk, nil
}

// GetByStandardID 获取指定标准的所有分块，按分块序号升序排列
func (r *FaissRepository) GetByStandardID(standardID string) ([]Chunk, error) {
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
func (r *FaissRepository) ListStandards() ([]string, error) {
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
func (r *FaissRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, exists := r.chunks[id]
	if !exists {
		return ErrChunkNotFound
	}
	delete(r.chunks, id)
	delete(r.idToPosition, id)
	if ids, ok := r.standardToIDs[chunk.StandardID]; ok {
		updated := make([]string, 0, len(ids)-1)
		for _, existing := range ids {
			if existing != id {
				updated = append(updated, existing)
			}
		}
		if len(updated) == 0 {
			delete(r.standardToIDs, chunk.StandardID)
		} else {
			r.standardToIDs[chunk.StandardID] = updated
		}
	}
	r.operationCount++
	return nil
}

// DeleteByStandardID 删除指定标准的所有分块
func (r *FaissRepository) DeleteByStandardID(standardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, exists := r.standardToIDs[standardID]
	if !exists {
		return nil
	}
	for _, id := range ids {
		delete(r.chunks, id)
		delete(r.idToPosition, id)
	}
	delete(r.standardToIDs, standardID)
	r.operationCount += len(ids)
	return nil
}

// Search 相似度搜索
func (r *FaissRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distanceType == Cosine {
		vector = normalizeVector(vector)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.chunks) == 0 {
		return []SearchResult{}, nil
	}
	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}
	queryLimit := k * 2
	total := int(r.index.Ntotal())
	if queryLimit > total {
		queryLimit = total
	}
	if queryLimit == 0 {
		return []SearchResult{}, nil
	}
	distances, indices, err := r.index.Search(vector, int64(queryLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %v", err)
	}

	// 构建位置到ID的反向映射，避免每个结果都遍历全表
	positionToID := make(map[int]string, len(r.idToPosition))
	for id, pos := range r.idToPosition {
		positionToID[pos] = id
	}

	var results []SearchResult
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 {
			continue
		}
		chunkID, found := positionToID[int(idx)]
		if !found {
			continue
		}
		chunk, exists := r.chunks[chunkID]
		if !exists {
			continue
		}
		if len(filter.StandardIDs) > 0 {
			matched := false
			for _, id := range filter.StandardIDs {
				if chunk.StandardID == id {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if !matchMetadata(chunk.Metadata, filter.Metadata) {
			continue
		}
		score, dist := indexScore(distances[i], r.distanceType)
		if score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Chunk:    chunk,
			Score:    score,
			Distance: dist,
		})
		if len(results) >= k {
			break
		}
	}
	SortSearchResults(results)
	return results, nil
}

// Count 获取分块总数
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks), nil
}

// GetDimension 返回向量维数
func (r *FaissRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭仓库
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveOnClose && r.indexPath != "" {
		if err := r.saveIndex(); err != nil {
			return fmt.Errorf("failed to save index on close: %v", err)
		}
	}
	return nil
}

// saveIndex 保存索引和分块数据到文件
func (r *FaissRepository) saveIndex() error {
	if r.indexPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write index to file: %v", err)
	}
	return r.saveMetadata()
}

// saveMetadata 保存分块元数据到文件
func (r *FaissRepository) saveMetadata() error {
	if r.metaPath == "" {
		return nil
	}
	metadata := struct {
		Chunks         map[string]Chunk    `json:"chunks"`
		StandardToIDs  map[string][]string `json:"standard_to_ids"`
		IDToPosition   map[string]int      `json:"id_to_position"`
		OperationCount int                 `json:"operation_count"`
	}{
		Chunks:         r.chunks,
		StandardToIDs:  r.standardToIDs,
		IDToPosition:   r.idToPosition,
		OperationCount: r.operationCount,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}
	return nil
}

// loadMetadata 从文件加载分块元数据
func (r *FaissRepository) loadMetadata(path string) error {
	if path == "" {
		return nil
	}
	if !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %v", err)
	}
	metadata := struct {
		Chunks         map[string]Chunk    `json:"chunks"`
		StandardToIDs  map[string][]string `json:"standard_to_ids"`
		IDToPosition   map[string]int      `json:"id_to_position"`
		OperationCount int                 `json:"operation_count"`
	}{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %v", err)
	}
	if metadata.Chunks != nil {
		r.chunks = metadata.Chunks
	}
	if metadata.StandardToIDs != nil {
		r.standardToIDs = metadata.StandardToIDs
	}
	if metadata.IDToPosition != nil {
		r.idToPosition = metadata.IDToPosition
	}
	r.operationCount = metadata.OperationCount
	return nil
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
