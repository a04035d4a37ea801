package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/rollup-prover/configs"
	"github.com/weisyn/rollup-prover/internal/app"
	"github.com/weisyn/rollup-prover/internal/app/version"
)

// serveFlags serve 命令标志
type serveFlags struct {
	ConfigPath   string // 配置文件路径
	Env          string // 使用内置配置的环境名
	StartTimeout time.Duration
}

// newRootCmd 根命令
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rollup-prover",
		Short: "Rollup 见证证明网关",
		Long: `rollup-prover - 分层 rollup 的证明作业网关

接收各阶段的见证（validity、deposit、update、transfer、send、withdrawal），
校验后异步生成证明，并以 <domain>/<subject>/<stage>/<requestId> 为键缓存结果。
重复提交同一请求只会生成一次证明。`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

// newServeCmd 启动 HTTP 服务
func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动证明网关",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.appOptions()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.StartTimeout)
			defer cancel()
			a, err := app.Start(ctx, opts...)
			if err != nil {
				return err
			}
			fmt.Printf("✅ rollup-prover %s 已启动\n", version.GetVersion())
			a.Wait()
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", app.DefaultConfigPath, "配置文件路径 (环境变量 "+app.EnvConfigPath+" 优先)")
	cmd.Flags().StringVar(&flags.Env, "env", "", "使用内置配置: development|production (优先于 --config)")
	cmd.Flags().DurationVar(&flags.StartTimeout, "start-timeout", 30*time.Second, "启动超时")
	return cmd
}

// appOptions 将命令行标志转换为应用选项
func (f serveFlags) appOptions() ([]app.Option, error) {
	if f.Env != "" {
		data := configs.Get(f.Env)
		if data == nil {
			return nil, fmt.Errorf("未知环境 %q，可选 development|production", f.Env)
		}
		return []app.Option{app.WithEmbeddedConfig(data)}, nil
	}
	return []app.Option{app.WithConfigFile(f.ConfigPath)}, nil
}

// newVersionCmd 输出版本信息
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
		},
	}
}
