package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindowSplitter(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		splitter, err := NewWindowSplitter(DefaultSplitterConfig())
		require.NoError(t, err, "创建分块器不应返回错误")
		assert.NotNil(t, splitter, "分块器不应为nil")
	})

	t.Run("InvalidChunkSize", func(t *testing.T) {
		_, err := NewWindowSplitter(SplitterConfig{ChunkSize: 0, ChunkOverlap: 0})
		assert.Error(t, err, "分块大小为0时应返回错误")
	})

	t.Run("OverlapTooLarge", func(t *testing.T) {
		_, err := NewWindowSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 100})
		assert.Error(t, err, "重叠不小于分块大小时应返回错误")
	})

	t.Run("NegativeOverlap", func(t *testing.T) {
		_, err := NewWindowSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: -1})
		assert.Error(t, err, "负重叠应返回错误")
	})
}

func TestWindowSplitterSplit(t *testing.T) {
	t.Run("EmptyText", func(t *testing.T) {
		splitter, err := NewWindowSplitter(DefaultSplitterConfig())
		require.NoError(t, err)

		chunks, err := splitter.Split("")
		require.NoError(t, err)
		assert.Empty(t, chunks, "空文本应返回空分块序列")
	})

	t.Run("TextShorterThanChunkSize", func(t *testing.T) {
		splitter, err := NewWindowSplitter(SplitterConfig{ChunkSize: 1000, ChunkOverlap: 200})
		require.NoError(t, err)

		text := strings.Repeat("a", 500)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, chunks, 1, "短于分块大小的文本应只产生一个分块")
		assert.Equal(t, text, chunks[0].Text, "分块内容应等于原文")
		assert.Equal(t, 0, chunks[0].Index, "分块序号应为0")
	})

	t.Run("OverlappingWindows", func(t *testing.T) {
		splitter, err := NewWindowSplitter(SplitterConfig{ChunkSize: 1000, ChunkOverlap: 200})
		require.NoError(t, err)

		text := strings.Repeat("x", 2500)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, chunks, 3, "2500字符应产生3个分块")

		// 窗口起点间隔为 ChunkSize - ChunkOverlap = 800
		assert.Equal(t, 1000, len(chunks[0].Text), "第一个分块长度应为1000")
		assert.Equal(t, 1000, len(chunks[1].Text), "第二个分块长度应为1000")
		assert.Equal(t, 900, len(chunks[2].Text), "最后一个分块应覆盖剩余的900字符")

		for i, c := range chunks {
			assert.Equal(t, i, c.Index, "分块序号应连续递增")
		}
	})

	t.Run("AdjacentChunksShareOverlap", func(t *testing.T) {
		splitter, err := NewWindowSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 4})
		require.NoError(t, err)

		text := "abcdefghijklmnopqrstuvwxyz"
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.True(t, len(chunks) >= 2)

		for i := 1; i < len(chunks); i++ {
			prev := chunks[i-1].Text
			tail := prev[len(prev)-4:]
			assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
				"相邻分块应共享重叠区域")
		}
	})

	t.Run("ExactMultipleNoEmptyTrailingChunk", func(t *testing.T) {
		splitter, err := NewWindowSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 0})
		require.NoError(t, err)

		chunks, err := splitter.Split(strings.Repeat("y", 30))
		require.NoError(t, err)
		assert.Len(t, chunks, 3, "整数倍长度不应产生空的末尾分块")
	})

	t.Run("MaxChunksLimit", func(t *testing.T) {
		splitter, err := NewWindowSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 0, MaxChunks: 2})
		require.NoError(t, err)

		chunks, err := splitter.Split(strings.Repeat("z", 100))
		require.NoError(t, err)
		assert.Len(t, chunks, 2, "分块数量应被限制为MaxChunks")
	})
}

func TestCleanText(t *testing.T) {
	t.Run("NormalizeLineBreaks", func(t *testing.T) {
		result := CleanText("line1\r\nline2\rline3")
		assert.Equal(t, "line1\nline2\nline3", result, "应统一换行符为\\n")
	})

	t.Run("CollapseWhitespace", func(t *testing.T) {
		result := CleanText("hello    world\t\ttabs")
		assert.Equal(t, "hello world tabs", result, "连续空白应折叠为单个空格")
	})

	t.Run("StripNonPrintable", func(t *testing.T) {
		result := CleanText("abc\x00\x07def")
		assert.Equal(t, "abcdef", result, "不可打印字符应被去除")
	})

	t.Run("CollapseBlankLines", func(t *testing.T) {
		result := CleanText("para1\n\n\n\n\npara2")
		assert.Equal(t, "para1\n\npara2", result, "连续空行最多保留一个")
	})

	t.Run("Idempotent", func(t *testing.T) {
		input := "  messy \r\n\r\n\r\n text \t here  "
		once := CleanText(input)
		twice := CleanText(once)
		assert.Equal(t, once, twice, "清洗函数应是幂等的")
	})

	t.Run("EmptyInput", func(t *testing.T) {
		assert.Equal(t, "", CleanText(""), "空输入应返回空字符串")
	})
}
