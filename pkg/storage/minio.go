package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	// 创建MinIO客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 保存标准文件到MinIO存储
// 对象名取标准ID加扩展名，重复保存直接覆盖
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	id := strings.TrimSuffix(base, ext)
	if id == "" {
		return FileInfo{}, fmt.Errorf("invalid filename: %s", filename)
	}

	objectName := id + ext

	// 读取文件内容到内存，以获取大小和进行上传
	// 注意：对于大文件，应该使用流式上传而不是加载到内存
	content, err := io.ReadAll(reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read file content: %v", err)
	}

	// 上传文件到MinIO
	contentReader := bytes.NewReader(content)
	size := int64(len(content))
	contentType := getMimeType(base)

	_, err = s.client.PutObject(
		context.Background(),
		s.bucketName,
		objectName,
		contentReader,
		size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %v", err)
	}

	// 返回文件信息
	return FileInfo{
		ID:       id,
		Name:     base,
		Size:     size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 获取MinIO中的文件
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.findObjectById(id)
	if err != nil {
		return nil, err
	}

	// 获取对象
	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	return obj, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.findObjectById(id)
	if err != nil {
		return err
	}

	// 删除对象
	err = s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// List 列出MinIO中的所有文件
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	// 创建一个通道接收MinIO对象
	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	// 遍历所有对象
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		// 从对象名称中提取标准ID
		objectName := object.Key
		fileName := filepath.Base(objectName)
		id := strings.TrimSuffix(fileName, filepath.Ext(fileName))

		// 添加到文件列表
		files = append(files, FileInfo{
			ID:       id,
			Name:     fileName,
			Size:     object.Size,
			MimeType: getMimeType(fileName),
			Path:     objectName,
		})
	}

	return files, nil
}

// Exists 检查MinIO中是否存在指定标准的文件
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.findObjectById(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findObjectById 根据标准ID查找对象名
func (s *MinioStorage) findObjectById(id string) (string, error) {
	files, err := s.List()
	if err != nil {
		return "", fmt.Errorf("failed to list files: %v", err)
	}

	for _, file := range files {
		if file.ID == id {
			return file.Path, nil
		}
	}

	return "", fmt.Errorf("file with id %s not found", id)
}
