// Package log 定义证明网关统一使用的日志接口
//
// 各模块只依赖本接口，具体实现由 internal/core/infrastructure/log 基于zap提供，
// 由DI容器注入；需要结构化字段的模块可通过 GetZapLogger 获取底层zap记录器。
package log

import "go.uber.org/zap"

// Level 日志级别
type Level string

// 日志级别定义
const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
	FatalLevel Level = "fatal"
)

// Logger 定义日志记录器接口
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})

	Info(msg string)
	Infof(format string, args ...interface{})

	Warn(msg string)
	Warnf(format string, args ...interface{})

	Error(msg string)
	Errorf(format string, args ...interface{})

	// Fatal 记录致命级别的日志，然后退出程序
	Fatal(msg string)
	Fatalf(format string, args ...interface{})

	// With 返回一个带有额外字段的Logger（键值对形式）
	With(args ...interface{}) Logger

	// Sync 同步日志缓冲区到输出
	Sync() error

	// GetZapLogger 获取原始的zap日志记录器
	GetZapLogger() *zap.Logger
}
