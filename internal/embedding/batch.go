package embedding

import "context"

// EmbedAll 将任意数量的文本按批次向量化
// 按batchSize切分后依次调用EmbedBatch，结果保持输入顺序
// 任一批次失败则立即返回错误
func EmbedAll(ctx context.Context, client Client, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := client.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}

	return result, nil
}
