package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	appconfig "github.com/fyerfyer/standards-review-system/config"
)

func TestCollectionPath(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.VectorDB.Path = "./data/vectordb"
	cfg.VectorDB.Collection = "standards"

	t.Run("FileSnapshot", func(t *testing.T) {
		path := collectionPath(cfg, "file")
		assert.Equal(t, filepath.Join("./data/vectordb", "standards.json"), path,
			"文件实现应使用集合名命名的JSON快照")
	})

	t.Run("FaissIndex", func(t *testing.T) {
		path := collectionPath(cfg, "faiss")
		assert.Equal(t, filepath.Join("./data/vectordb", "standards.index"), path,
			"faiss实现应使用集合名命名的索引文件")
	})

	t.Run("EmptyCollection", func(t *testing.T) {
		noColl := &appconfig.Config{}
		noColl.VectorDB.Path = "./data/vectordb"

		path := collectionPath(noColl, "file")
		assert.Equal(t, "./data/vectordb", path, "未配置集合名时直接使用存储路径")
	})
}
