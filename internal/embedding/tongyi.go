package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// 默认API端点
	defaultDashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	defaultOpenAIEndpoint    = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"

	// 默认模型
	defaultModel = "text-embedding-v3"
)

// DashScopeRequest 定义DashScope请求结构体
type DashScopeRequest struct {
	Model      string                `json:"model"`
	Input      DashScopeRequestInput `json:"input"`
	Parameters *DashScopeParameters  `json:"parameters,omitempty"`
}

type DashScopeRequestInput struct {
	Texts []string `json:"texts"`
}

type DashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// TongyiClient 实现通义千问嵌入API客户端
type TongyiClient struct {
	apiKey       string       // API密钥
	endpoint     string       // API端点
	model        string       // 模型名称
	httpClient   *http.Client // HTTP客户端
	maxRetries   int          // 最大重试次数
	dimensions   int          // 向量维度
	useOpenAIAPI bool         // 是否使用OpenAI兼容接口
}

// NewTongyiClient 创建新的通义千问嵌入客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	// 确定API端点
	endpoint := cfg.BaseURL
	useOpenAIAPI := false
	if endpoint == "" {
		endpoint = defaultDashScopeEndpoint
	} else if endpoint == "openai" || endpoint == "compatible" {
		endpoint = defaultOpenAIEndpoint
		useOpenAIAPI = true
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1024
	}

	client := &TongyiClient{
		apiKey:       cfg.APIKey,
		endpoint:     endpoint,
		model:        model,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		maxRetries:   cfg.MaxRetries,
		dimensions:   dimensions,
		useOpenAIAPI: useOpenAIAPI,
	}

	return client, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *TongyiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embedding vectors returned")
	}

	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示
func (c *TongyiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// 检查批量大小限制
	if c.isV3Model() && len(texts) > 10 {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "text-embedding-v3 model supports maximum 10 texts per batch")
	} else if !c.isV3Model() && len(texts) > 25 {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, "text-embedding-v1/v2 models support maximum 25 texts per batch")
	}

	if c.useOpenAIAPI {
		return c.embedBatchOpenAI(ctx, texts)
	}
	return c.embedBatchDashScope(ctx, texts)
}

// embedBatchOpenAI 使用OpenAI兼容接口处理批量文本
func (c *TongyiClient) embedBatchOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := map[string]interface{}{
		"model":           c.model,
		"input":           texts,
		"encoding_format": "float",
	}

	// v3模型支持自定义维度
	if c.isV3Model() && c.dimensions != 1024 {
		if !isValidDimension(c.dimensions) {
			return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("invalid dimension: %d", c.dimensions))
		}
		reqData["dimensions"] = c.dimensions
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	result := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		result[item.Index] = item.Embedding
	}

	return result, nil
}

// embedBatchDashScope 使用DashScope原生接口处理批量文本
func (c *TongyiClient) embedBatchDashScope(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := DashScopeRequest{
		Model: c.model,
		Input: DashScopeRequestInput{
			Texts: texts,
		},
	}

	if c.isV3Model() {
		params := &DashScopeParameters{
			OutputType: "dense",
		}
		if c.dimensions != 1024 {
			if !isValidDimension(c.dimensions) {
				return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("invalid dimension: %d", c.dimensions))
			}
			params.Dimension = c.dimensions
		}
		reqData.Parameters = params
	}

	var resp struct {
		StatusCode int    `json:"status_code,omitempty"`
		RequestID  string `json:"request_id"`
		Code       string `json:"code,omitempty"`
		Message    string `json:"message,omitempty"`
		Output     struct {
			Embeddings []struct {
				Embedding []float32 `json:"embedding"`
				TextIndex int       `json:"text_index"`
			} `json:"embeddings"`
		} `json:"output"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	if resp.StatusCode != 0 && resp.StatusCode != 200 {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}

	embeddings := resp.Output.Embeddings
	if len(embeddings) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embeddings returned")
	}

	// 按照原始文本顺序构建结果
	result := make([][]float32, len(texts))
	for _, emb := range embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			continue
		}
		result[emb.TextIndex] = emb.Embedding
	}

	return result, nil
}

// sendRequest 发送API请求并解析响应
func (c *TongyiClient) sendRequest(ctx context.Context, reqData interface{}, respObj interface{}) error {
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		// 每次重试重新构造请求，避免复用已消费的请求体
		req, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.endpoint,
			bytes.NewBuffer(jsonData),
		)
		if reqErr != nil {
			return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			break
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
		}
	}

	if err != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			if errResp.Error != "" {
				return NewEmbeddingError(ErrCodeServerError, errResp.Error)
			}
			if errResp.Message != "" {
				return NewEmbeddingError(ErrCodeServerError, errResp.Message)
			}
		}

		return NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, respObj); err != nil {
		return NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("failed to parse response: %v", err))
	}

	return nil
}

// isV3Model 检查是否为v3模型
func (c *TongyiClient) isV3Model() bool {
	return c.model == "text-embedding-v3"
}

// isValidDimension 检查维度是否有效 (仅对v3模型)
func isValidDimension(dim int) bool {
	validDims := []int{1024, 768, 512, 256, 128, 64}
	for _, validDim := range validDims {
		if dim == validDim {
			return true
		}
	}
	return false
}

// 注册通义千问客户端
func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
