package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Save 保存标准文件到本地存储
// 同一标准再次保存时覆盖旧文件
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	id := strings.TrimSuffix(base, ext)
	if id == "" {
		return FileInfo{}, fmt.Errorf("invalid filename: %s", filename)
	}

	// 同一标准的旧文件可能使用不同扩展名，先清掉
	if err := s.removeFilesById(id); err != nil {
		return FileInfo{}, err
	}

	filePath := filepath.Join(s.basePath, id+ext)

	// 创建文件
	file, err := os.Create(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	// 写入文件内容
	size, err := io.Copy(file, reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %v", err)
	}

	// 返回文件信息
	return FileInfo{
		ID:       id,
		Name:     base,
		Size:     size,
		MimeType: getMimeType(base),
		Path:     id + ext,
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	// 查找文件
	filePath, err := s.findFilePathById(id)
	if err != nil {
		return nil, err
	}

	// 打开文件
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}

	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(id string) error {
	// 查找文件
	filePath, err := s.findFilePathById(id)
	if err != nil {
		return err
	}

	// 删除文件
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}

	return nil
}

// List 列出所有文件
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %v", err)
		}

		fileName := entry.Name()
		id := strings.TrimSuffix(fileName, filepath.Ext(fileName))

		files = append(files, FileInfo{
			ID:       id,
			Name:     fileName,
			Size:     info.Size(),
			MimeType: getMimeType(fileName),
			Path:     fileName,
		})
	}

	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.findFilePathById(id)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findFilePathById 根据标准ID查找文件路径
func (s *LocalStorage) findFilePathById(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, id+".*"))
	if err != nil {
		return "", fmt.Errorf("error searching for file: %v", err)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("file with id %s not found", id)
	}

	return matches[0], nil
}

// removeFilesById 删除指定标准ID的所有文件
func (s *LocalStorage) removeFilesById(id string) error {
	matches, err := filepath.Glob(filepath.Join(s.basePath, id+".*"))
	if err != nil {
		return fmt.Errorf("error searching for file: %v", err)
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to replace existing file: %v", err)
		}
	}

	return nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
