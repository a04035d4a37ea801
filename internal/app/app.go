// Package app 组装并启动 rollup 证明网关
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weisyn/rollup-prover/pkg/types"
)

const (
	// EnvConfigPath 配置文件路径环境变量，优先级高于命令行参数
	EnvConfigPath = "PROVER_CONFIG_PATH"

	// DefaultConfigPath 默认配置文件路径
	DefaultConfigPath = "configs/prover.json"

	// stopTimeout 停止超时；执行器会等待运行中的证明作业写入终态
	stopTimeout = 60 * time.Second
)

// App 是证明网关的对外接口
type App interface {
	// Stop 停止应用
	Stop() error

	// Wait 阻塞直到收到退出信号，然后停止应用
	Wait()
}

// internalApp 应用的内部实现
type internalApp struct {
	bootstrap *Bootstrap
}

// Stop 停止应用
func (a *internalApp) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return a.bootstrap.StopApp(ctx)
}

// Wait 等待应用收到退出信号
func (a *internalApp) Wait() {
	fmt.Println("🔄 证明网关正在运行，按 Ctrl+C 停止...")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	sig := <-signals
	fmt.Printf("\n🛑 收到信号 %v，正在优雅退出...\n", sig)

	if err := a.Stop(); err != nil {
		fmt.Printf("⚠️ 停止应用时出错: %v\n", err)
	}
}

// Start 加载配置、构建依赖图并启动应用
func Start(ctx context.Context, appOptions ...Option) (App, error) {
	opts := newOptions(appOptions...)

	appConfig, err := loadAppConfig(opts)
	if err != nil {
		return nil, err
	}
	opts.appConfig = appConfig

	b := NewBootstrap(opts)
	if err := b.CreateFxApp(); err != nil {
		return nil, err
	}
	if err := b.StartApp(ctx); err != nil {
		return nil, err
	}
	return &internalApp{bootstrap: b}, nil
}

// loadAppConfig 按优先级加载用户配置：
//  1. WithAppConfig 直接指定
//  2. WithEmbeddedConfig 内置配置
//  3. 环境变量 PROVER_CONFIG_PATH、WithConfigFile、默认路径
//
// 配置文件不存在时使用默认配置；存在但无法解析时返回错误。
func loadAppConfig(opts *options) (*types.AppConfig, error) {
	if opts.appConfig != nil {
		return opts.appConfig, nil
	}
	if len(opts.embeddedConfig) > 0 {
		return parseAppConfig(opts.embeddedConfig, "embedded")
	}

	configPath := configFilePath(opts)
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("配置文件 %s 不存在，使用默认配置\n", configPath)
		return &types.AppConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", configPath, err)
	}
	cfg, err := parseAppConfig(data, configPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("已成功加载配置文件: %s\n", configPath)
	return cfg, nil
}

func parseAppConfig(data []byte, source string) (*types.AppConfig, error) {
	var appConfig types.AppConfig
	if err := json.Unmarshal(data, &appConfig); err != nil {
		return nil, fmt.Errorf("解析配置 %s 失败: %w", source, err)
	}
	return &appConfig, nil
}

// configFilePath 获取配置文件路径
func configFilePath(opts *options) string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	if opts.configFilePath != "" {
		return opts.configFilePath
	}
	return DefaultConfigPath
}
