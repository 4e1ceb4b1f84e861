package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestPDF 生成一个包含指定文本的测试PDF文件
func createTestPDF(t *testing.T, dir, name, content string) string {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(190, 10, content, "", "L", false)

	path := filepath.Join(dir, name)
	require.NoError(t, pdf.OutputFileAndClose(path), "生成测试PDF不应失败")
	return path
}

func TestParserFactory(t *testing.T) {
	t.Run("PDFFile", func(t *testing.T) {
		parser, err := ParserFactory("standard.pdf")
		require.NoError(t, err)
		assert.IsType(t, &PDFParser{}, parser, "pdf文件应返回PDF解析器")
	})

	t.Run("MarkdownFile", func(t *testing.T) {
		parser, err := ParserFactory("standard.md")
		require.NoError(t, err)
		assert.IsType(t, &MarkdownParser{}, parser, "md文件应返回Markdown解析器")
	})

	t.Run("TextFile", func(t *testing.T) {
		parser, err := ParserFactory("standard.txt")
		require.NoError(t, err)
		assert.IsType(t, &PlainTextParser{}, parser, "txt文件应返回纯文本解析器")
	})

	t.Run("UppercaseExtension", func(t *testing.T) {
		parser, err := ParserFactory("STANDARD.PDF")
		require.NoError(t, err)
		assert.IsType(t, &PDFParser{}, parser, "扩展名匹配应不区分大小写")
	})

	t.Run("UnsupportedFile", func(t *testing.T) {
		_, err := ParserFactory("standard.docx")
		assert.ErrorIs(t, err, ErrUnsupportedType, "不支持的类型应返回ErrUnsupportedType")
	})
}

func TestStandardName(t *testing.T) {
	t.Run("SimpleFileName", func(t *testing.T) {
		assert.Equal(t, "FAS_32", StandardName("FAS_32.pdf"))
	})

	t.Run("NestedPath", func(t *testing.T) {
		assert.Equal(t, "FAS_32", StandardName("/data/standards/FAS_32.pdf"))
	})

	t.Run("NoExtension", func(t *testing.T) {
		assert.Equal(t, "FAS_32", StandardName("FAS_32"))
	})
}

func TestPDFParser(t *testing.T) {
	t.Run("ParseFile", func(t *testing.T) {
		dir := t.TempDir()
		content := "This standard establishes accounting principles for Ijarah transactions."
		path := createTestPDF(t, dir, "test.pdf", content)

		parser := NewPDFParser()
		text, err := parser.Parse(path)
		require.NoError(t, err, "解析PDF不应返回错误")
		assert.Contains(t, text, "Ijarah", "提取的文本应包含原始内容")
	})

	t.Run("ParseReader", func(t *testing.T) {
		dir := t.TempDir()
		path := createTestPDF(t, dir, "reader.pdf", "Reader based extraction content.")

		file, err := os.Open(path)
		require.NoError(t, err)
		defer file.Close()

		parser := NewPDFParser()
		text, err := parser.ParseReader(file, "reader.pdf")
		require.NoError(t, err)
		assert.Contains(t, text, "extraction", "从Reader解析应提取出文本")
	})

	t.Run("NonexistentFile", func(t *testing.T) {
		parser := NewPDFParser()
		_, err := parser.Parse("/nonexistent/path.pdf")
		assert.Error(t, err, "不存在的文件应返回错误")
	})

	t.Run("PageOrder", func(t *testing.T) {
		// 超过9页时按文件名字典序拼接会把第10页排在第2页之前
		dir := t.TempDir()
		pageCount := 12

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.SetFont("Arial", "", 12)
		for i := 1; i <= pageCount; i++ {
			pdf.AddPage()
			pdf.MultiCell(190, 10, fmt.Sprintf("Section %d of the standard. SECTION-%02d", i, i), "", "L", false)
		}
		path := filepath.Join(dir, "multipage.pdf")
		require.NoError(t, pdf.OutputFileAndClose(path), "生成多页PDF不应失败")

		parser := NewPDFParser()
		text, err := parser.Parse(path)
		require.NoError(t, err, "解析多页PDF不应返回错误")

		prev := -1
		for i := 1; i <= pageCount; i++ {
			marker := fmt.Sprintf("SECTION-%02d", i)
			pos := strings.Index(text, marker)
			require.GreaterOrEqual(t, pos, 0, "应包含第%d页的文本", i)
			assert.Greater(t, pos, prev, "第%d页的文本应出现在前一页之后", i)
			prev = pos
		}
	})
}

func TestMarkdownParser(t *testing.T) {
	t.Run("ParseContent", func(t *testing.T) {
		md := "# Standard Title\n\nSome **bold** requirement.\n\n- item one\n- item two\n"
		parser := NewMarkdownParser()

		text, err := parser.ParseReader(strings.NewReader(md), "test.md")
		require.NoError(t, err)
		assert.Contains(t, text, "Standard Title", "应提取标题文本")
		assert.Contains(t, text, "bold", "应提取正文文本")
		assert.NotContains(t, text, "<", "不应残留HTML标签")
		assert.NotContains(t, text, "**", "不应残留Markdown标记")
	})

	t.Run("EmptyContent", func(t *testing.T) {
		parser := NewMarkdownParser()
		_, err := parser.ParseReader(strings.NewReader(""), "empty.md")
		assert.ErrorIs(t, err, ErrNoTextContent, "空文档应返回ErrNoTextContent")
	})
}

func TestPlainTextParser(t *testing.T) {
	t.Run("ParseFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test.txt")
		require.NoError(t, os.WriteFile(path, []byte("plain content"), 0644))

		parser := NewPlainTextParser()
		text, err := parser.Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "plain content", text)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		parser := NewPlainTextParser()
		_, err := parser.ParseReader(strings.NewReader(""), "empty.txt")
		assert.ErrorIs(t, err, ErrNoTextContent, "空文件应返回ErrNoTextContent")
	})
}
