package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// 提取出的文本文件名以页码结尾，形如 Content_page_12.txt
var pageSuffixRe = regexp.MustCompile(`(\d+)\.txt$`)

// PDFParser PDF文档解析器
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并逐页提取文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	// 提取文本到临时目录
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract text from PDF: %v", err)
	}

	// 读取所有提取出来的txt文件
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	// 按页码排序，字典序会把第10页排在第2页之前
	sort.Slice(entries, func(i, j int) bool {
		pi, pj := pageNumber(entries[i].Name()), pageNumber(entries[j].Name())
		if pi != pj {
			return pi < pj
		}
		return entries[i].Name() < entries[j].Name()
	})

	var allText strings.Builder
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.WriteString(string(data))
	}

	result := strings.TrimSpace(allText.String())
	if result == "" {
		return "", ErrNoTextContent
	}
	return result, nil
}

// pageNumber 解析提取文件名末尾的页码，无页码时返回-1
func pageNumber(name string) int {
	m := pageSuffixRe.FindStringSubmatch(name)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// ParseReader 从Reader解析PDF内容
// pdfcpu的内容提取基于文件路径，先落盘到临时文件再解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmpFile, err := os.CreateTemp("", "standard_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to buffer PDF content: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %v", err)
	}

	return p.Parse(tmpFile.Name())
}
