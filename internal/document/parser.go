package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// 解析相关错误定义
var (
	// ErrUnsupportedType 不支持的文档类型
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrNoTextContent 文档中没有可提取的文本内容
	ErrNoTextContent = errors.New("no extractable text content")
)

// Parser 文档解析器接口
// 负责将不同格式的标准文档解析为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch detectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// StandardName 从文件路径推导标准标识符
// 标识符为文件名去掉扩展名
func StandardName(filePath string) string {
	name := filepath.Base(filePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Chunk 表示标准文本的一个分块
// 带有其在原文中的位置序号
type Chunk struct {
	Text  string // 分块文本内容
	Index int    // 分块序号
}

// Splitter 文本分块器接口
// 负责将长文本分割成适合向量化的窗口
type Splitter interface {
	// Split 将文本分割成分块序列
	Split(text string) ([]Chunk, error)
}
