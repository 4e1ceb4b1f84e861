package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTongyiTestServer 创建模拟通义千问生成接口的测试服务器
func newTongyiTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		var req TongyiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Input)
		assert.NotEmpty(t, req.Input.Messages, "请求应包含消息")

		resp := TongyiResponse{
			RequestID: "test-request",
			Output: TongyiOutput{
				Choices: []TongyiChoice{
					{
						FinishReason: "stop",
						Message: Message{
							Role:    RoleAssistant,
							Content: reply,
						},
					},
				},
			},
			Usage: TongyiUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewTongyiClient(t *testing.T) {
	t.Run("MissingAPIKey", func(t *testing.T) {
		_, err := NewTongyiClient()
		assert.Error(t, err, "缺少API密钥应返回错误")
	})

	t.Run("ModelName", func(t *testing.T) {
		client, err := NewTongyiClient(
			WithAPIKey("test-key"),
			WithModel(ModelQwenMax),
		)
		require.NoError(t, err)
		assert.Equal(t, ModelQwenMax, client.Name(), "应返回配置的模型名称")
	})

	t.Run("RegisteredFactory", func(t *testing.T) {
		client, err := NewClient("tongyi", WithAPIKey("test-key"))
		require.NoError(t, err, "通过注册名称创建客户端不应失败")
		assert.NotNil(t, client)
	})

	t.Run("UnknownFactory", func(t *testing.T) {
		_, err := NewClient("unknown")
		assert.Error(t, err, "未注册的客户端类型应返回错误")
	})
}

func TestTongyiClientGenerate(t *testing.T) {
	server := newTongyiTestServer(t, "This standard covers Ijarah accounting.")
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithModel(ModelQwenPlus),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		resp, err := client.Generate(ctx, "Review the following standard")
		require.NoError(t, err, "生成不应返回错误")
		assert.Equal(t, "This standard covers Ijarah accounting.", resp.Text)
		assert.Equal(t, 30, resp.TokenCount, "应返回token使用量")
		assert.Equal(t, ModelQwenPlus, resp.ModelName)
	})

	t.Run("EmptyPrompt", func(t *testing.T) {
		_, err := client.Generate(ctx, "")
		require.Error(t, err, "空提示词应返回错误")

		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
	})
}

func TestTongyiClientChat(t *testing.T) {
	server := newTongyiTestServer(t, "chat reply")
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	t.Run("MultiTurn", func(t *testing.T) {
		messages := []Message{
			{Role: RoleSystem, Content: "You are a standards reviewer."},
			{Role: RoleUser, Content: "Summarize the key definitions."},
		}

		resp, err := client.Chat(context.Background(), messages)
		require.NoError(t, err)
		assert.Equal(t, "chat reply", resp.Text)
		require.Len(t, resp.Messages, 1, "应包含助手回复消息")
		assert.Equal(t, RoleAssistant, resp.Messages[0].Role)
	})

	t.Run("EmptyMessages", func(t *testing.T) {
		_, err := client.Chat(context.Background(), nil)
		assert.Error(t, err, "空消息列表应返回错误")
	})
}

func TestTongyiClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := TongyiResponse{
			RequestID: "err-request",
			Code:      "InvalidParameter",
			Message:   "model not supported",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "prompt")
	require.Error(t, err, "API返回错误码时应返回错误")
	assert.Contains(t, err.Error(), "InvalidParameter")
}

func TestTongyiClientRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		text := "recovered"
		resp := TongyiResponse{
			RequestID: "retry-request",
			Output:    TongyiOutput{Text: &text},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err, "5xx错误应重试并最终成功")
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "recovered", resp.Text)
}
