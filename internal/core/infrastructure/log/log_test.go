package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logconfig "github.com/weisyn/rollup-prover/internal/config/log"
)

// newFileLogger 创建只写文件的日志记录器
func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prover.log")
	logger, err := New(logconfig.NewFromOptions(&logconfig.LogOptions{
		Level:      level,
		FilePath:   path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}))
	require.NoError(t, err)
	concrete, ok := logger.(*Logger)
	require.True(t, ok)
	return concrete, path
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

// TestFileLoggerWritesJSON 测试文件输出为JSON格式
func TestFileLoggerWritesJSON(t *testing.T) {
	logger, path := newFileLogger(t, "info")

	logger.Info("证明任务已调度")
	require.NoError(t, logger.Sync())

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "证明任务已调度", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
}

// TestLevelFiltering 测试低于配置级别的日志被丢弃
func TestLevelFiltering(t *testing.T) {
	logger, path := newFileLogger(t, "warn")

	logger.Info("不应出现")
	logger.Warnf("队列积压: %d", 12)
	require.NoError(t, logger.Sync())

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "队列积压: 12", entries[0]["message"])
}

// TestWithAddsStructuredFields 测试With追加结构化字段
func TestWithAddsStructuredFields(t *testing.T) {
	logger, path := newFileLogger(t, "debug")

	NewModuleLogger(logger, "executor").With("stage", "deposit", "dangling").Debug("开始证明")
	require.NoError(t, logger.Sync())

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "executor", entries[0]["module"])
	assert.Equal(t, "deposit", entries[0]["stage"])
	_, hasDangling := entries[0]["dangling"]
	assert.False(t, hasDangling, "奇数个参数时最后一个应被忽略")
}

// TestGnarkBridge 测试gnark日志桥接只转发warn及以上
func TestGnarkBridge(t *testing.T) {
	logger, path := newFileLogger(t, "debug")
	BridgeGnarkLogger(logger.GetZapLogger())

	w := zapWriter{logger: logger.GetZapLogger()}
	_, err := w.Write([]byte(`{"level":"warn","message":"slow setup"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, logger.Sync())

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["message"], "slow setup")
}

// TestFileOnlyWhenConsoleDisabled 指定文件且关闭控制台时只写文件
func TestFileOnlyWhenConsoleDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prover.log")
	logger, err := New(logconfig.NewFromOptions(&logconfig.LogOptions{Level: "error", FilePath: path, MaxSize: 1}))
	require.NoError(t, err)

	logger.Error("写入终态记录失败")
	require.NoError(t, logger.Sync())

	entries := readLines(t, path)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "caller")
	assert.Contains(t, entries[0], "stacktrace")
}
