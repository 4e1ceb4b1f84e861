package vectordb

import (
	"fmt"
	"math"
)

// ComputeDistance 计算两个向量间的距离
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance 计算余弦距离
func cosineDistance(v1, v2 []float32) float32 {
	// 余弦距离 = 1 - 余弦相似度
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0 // 最大距离
	}

	similarity := dot / (norm1 * norm2)
	// 处理浮点精度问题
	if similarity > 1.0 {
		similarity = 1.0
	}

	return 1.0 - similarity
}

// dotProduct 计算两个向量的点积
func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

// euclideanDistance 计算欧几里德距离
func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量（使其长度为1）
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v // 零向量无法归一化
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// matchMetadata 检查分块元数据是否匹配过滤条件
func matchMetadata(chunkMeta map[string]interface{}, filterMeta map[string]interface{}) bool {
	if len(filterMeta) == 0 {
		return true
	}

	for key, filterValue := range filterMeta {
		chunkValue, exists := chunkMeta[key]
		if !exists || chunkValue != filterValue {
			return false
		}
	}

	return true
}

// SortSearchResults 对搜索结果按相似度评分排序（降序）
func SortSearchResults(results []SearchResult) {
	// 使用简单的插入排序（对小结果集足够高效）
	for i := 1; i < len(results); i++ {
		current := results[i]
		j := i - 1

		for j >= 0 && results[j].Score < current.Score {
			results[j+1] = results[j]
			j--
		}
		results[j+1] = current
	}
}

// DistanceToScore 将距离转换为评分（0-1之间）
// 不同距离度量需要不同的转换方法
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// 对于归一化向量，点积范围在[-1, 1]之间，转换为[0, 1]
		return (distance + 1) / 2
	case Euclidean:
		// 使用高斯衰减函数，距离越小分数越高
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", expectedDim, len(vector))
	}

	return nil
}
