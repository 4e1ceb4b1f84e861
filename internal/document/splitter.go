package document

import (
	"fmt"
	"strings"
	"unicode"
)

// SplitterConfig 分块器配置
type SplitterConfig struct {
	ChunkSize    int // 分块大小（按字符数）
	ChunkOverlap int // 分块重叠大小（字符数）
	MaxChunks    int // 最大分块数量（0表示不限制）
}

// DefaultSplitterConfig 返回默认分块器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MaxChunks:    0,
	}
}

// WindowSplitter 固定窗口文本分块器
// 以固定大小的滑动窗口切分文本，相邻窗口之间保留重叠
// 窗口边界不感知句子或段落
type WindowSplitter struct {
	config SplitterConfig
}

// NewWindowSplitter 创建新的固定窗口分块器
func NewWindowSplitter(config SplitterConfig) (*WindowSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d",
			config.ChunkSize, config.ChunkOverlap)
	}
	return &WindowSplitter{config: config}, nil
}

// Split 将文本分割成重叠的固定窗口
// 最后一个窗口可能短于ChunkSize；空文本返回空序列
func (s *WindowSplitter) Split(text string) ([]Chunk, error) {
	if text == "" {
		return []Chunk{}, nil
	}

	step := s.config.ChunkSize - s.config.ChunkOverlap

	var chunks []Chunk
	for start := 0; start < len(text); start += step {
		end := start + s.config.ChunkSize
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, Chunk{
			Text:  text[start:end],
			Index: len(chunks),
		})

		if end == len(text) {
			break
		}
	}

	// 应用最大分块数量限制
	if s.config.MaxChunks > 0 && len(chunks) > s.config.MaxChunks {
		chunks = chunks[:s.config.MaxChunks]
	}

	return chunks, nil
}

// CleanText 清洗提取出的原始文本
// 统一换行符，去除不可打印字符，折叠连续空白，纯函数
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	// 统一换行符
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// 去除换行以外的不可打印字符
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r == ' ' || unicode.IsPrint(r) {
			cleaned.WriteRune(r)
		}
	}
	text = cleaned.String()

	// 折叠行内连续空白为单个空格，保留换行结构
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	// 连续空行最多保留一个
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}
