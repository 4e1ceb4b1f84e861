package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %v", err)
	}

	// 解析Markdown并渲染为HTML，再从HTML中剥离出纯文本
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	htmlContent := markdown.Render(doc, renderer)

	plainText := extractTextFromHTML(string(htmlContent))
	if plainText == "" {
		return "", ErrNoTextContent
	}
	return plainText, nil
}

// extractTextFromHTML 从HTML中提取纯文本
func extractTextFromHTML(htmlText string) string {
	replacements := []struct {
		Old string
		New string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"<p>", ""},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"<ul>", "\n"},
		{"</ul>", "\n"},
		{"<ol>", "\n"},
		{"</ol>", "\n"},
	}

	result := htmlText
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.Old, r.New)
	}
	for level := 1; level <= 6; level++ {
		result = strings.ReplaceAll(result, fmt.Sprintf("<h%d>", level), "\n\n")
		result = strings.ReplaceAll(result, fmt.Sprintf("</h%d>", level), "\n\n")
	}

	// 移除所有剩余的HTML标签
	for {
		start := strings.Index(result, "<")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], ">")
		if end == -1 {
			break
		}
		result = result[:start] + " " + result[start+end+1:]
	}

	return CleanText(result)
}
