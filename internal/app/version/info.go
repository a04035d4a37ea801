// Package version provides version information for the application.
package version

import (
	"fmt"
	"runtime"
)

// 构建时注入的变量，通过ldflags设置
//
//	go build -ldflags "-X github.com/weisyn/rollup-prover/internal/app/version.Version=v0.2.0"
var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown" // RFC3339
)

// BuildInfo 完整构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion 获取版本号
func GetVersion() string {
	return Version
}

// GetBuildInfo 获取完整构建信息
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetFullVersion 获取完整版本信息（用于 version 命令输出）
func GetFullVersion() string {
	b := GetBuildInfo()
	return fmt.Sprintf("rollup-prover %s\ncommit: %s\nbuilt:  %s\ngo:     %s %s",
		b.Version, b.GitCommit, b.BuildTime, b.GoVersion, b.Platform)
}
