// Package log 证明服务日志：zap 控制台输出 + lumberjack 轮转文件
//
// 文件输出为 JSON，便于按 key / stage 字段检索证明作业；控制台为彩色文本。
package log

import (
	"fmt"
	"os"
	"path/filepath"

	logconfig "github.com/weisyn/rollup-prover/internal/config/log"
	logInterface "github.com/weisyn/rollup-prover/pkg/interfaces/infrastructure/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 实现 log.Logger
type Logger struct {
	zapLogger *zap.Logger
	sugar     *zap.SugaredLogger
}

var _ logInterface.Logger = (*Logger)(nil)

// New 根据配置创建日志记录器；未配置文件路径时强制输出到控制台
func New(config *logconfig.Config) (logInterface.Logger, error) {
	level := zap.NewAtomicLevelAt(config.GetZapLevel())
	path := config.GetFilePath()

	var cores []zapcore.Core
	if config.IsConsoleEnabled() || path == "" {
		cores = append(cores, zapcore.NewCore(config.CreateConsoleEncoder(), zapcore.Lock(os.Stdout), level))
	}
	if path != "" {
		writer, err := rotatingFile(path, config)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(config.CreateFileEncoder(), writer, level))
	}

	// 跳过一层封装，caller 指向调用方
	zl := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return wrap(zl), nil
}

// rotatingFile 证明作业日志量大，历史文件压缩保存
func rotatingFile(path string, config *logconfig.Config) (zapcore.WriteSyncer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("获取日志文件绝对路径失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   abs,
		MaxSize:    config.GetMaxSize(),
		MaxBackups: config.GetMaxBackups(),
		MaxAge:     config.GetMaxAge(),
		Compress:   true,
	}), nil
}

func wrap(zl *zap.Logger) *Logger {
	return &Logger{zapLogger: zl, sugar: zl.Sugar()}
}

// GetZapLogger 底层 zap 记录器（gin 中间件、gnark 桥接使用）
func (l *Logger) GetZapLogger() *zap.Logger {
	return l.zapLogger
}

func (l *Logger) Debug(msg string)                          { l.sugar.Debug(msg) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(msg string)                           { l.sugar.Info(msg) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(msg string)                           { l.sugar.Warn(msg) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(msg string)                          { l.sugar.Error(msg) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *Logger) Fatal(msg string)                          { l.sugar.Fatal(msg) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// With 追加键值字段；奇数个参数时最后一个被忽略
func (l *Logger) With(args ...interface{}) logInterface.Logger {
	if len(args)%2 != 0 {
		args = args[:len(args)-1]
	}
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return wrap(l.zapLogger.With(fields...))
}

// Sync 刷新缓冲
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}
