// Package api 汇总对外接口模块
package api

import (
	"go.uber.org/fx"

	"github.com/weisyn/rollup-prover/internal/api/http"
)

// Module 返回API模块选项
//
// 目前只有 HTTP 接口：证明提交/查询、健康检查与 /metrics。
func Module() fx.Option {
	return fx.Module("api",
		http.Module(),
	)
}
