package config

import (
	"fmt"
	"strings"
	"time"

	storeconfig "github.com/weisyn/rollup-prover/internal/config/store"
	"github.com/weisyn/rollup-prover/pkg/types"
)

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置验证失败 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个验证错误
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	msg := "配置验证失败，发现以下问题：\n"
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidateAppConfig 启动时校验用户配置
//
// 各模块的 New(user) 会忽略无法解析的值并回退默认值；这里对显式写出
// 但非法的值 fail-fast，避免例如 backend 拼错后静默连到默认 redis。
// 未设置的字段不校验。
func ValidateAppConfig(appConfig *types.AppConfig) error {
	if appConfig == nil {
		return nil
	}
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	duration := func(field string, v *string) {
		if v == nil {
			return
		}
		if d, err := time.ParseDuration(strings.TrimSpace(*v)); err != nil || d <= 0 {
			add(field, "时长格式无效: %q（期望类似 \"30s\"）", *v)
		}
	}

	if api := appConfig.API; api != nil {
		if api.HTTPPort != nil && (*api.HTTPPort < 0 || *api.HTTPPort > 65535) {
			add("api.http_port", "端口超出范围: %d", *api.HTTPPort)
		}
		duration("api.read_timeout", api.ReadTimeout)
		duration("api.write_timeout", api.WriteTimeout)
		if api.MaxBatchIDs != nil && *api.MaxBatchIDs <= 0 {
			add("api.max_batch_ids", "必须 > 0")
		}
		if api.ReadRateLimit != nil && *api.ReadRateLimit < 0 {
			add("api.read_rate_limit", "不能为负数")
		}
		if api.WriteRateLimit != nil && *api.WriteRateLimit < 0 {
			add("api.write_rate_limit", "不能为负数")
		}
	}

	if store := appConfig.Store; store != nil {
		if store.Backend != nil {
			switch *store.Backend {
			case storeconfig.BackendRedis, storeconfig.BackendBadger, storeconfig.BackendMemory:
			default:
				add("store.backend", "未知后端 %q，可选 redis|badger|memory", *store.Backend)
			}
		}
		duration("store.proof_expiration", store.ProofExpiration)
	}

	if prover := appConfig.Prover; prover != nil {
		if prover.Curve != nil && !strings.EqualFold(*prover.Curve, "bn254") {
			add("prover.curve", "不支持的曲线 %q，目前仅支持 bn254", *prover.Curve)
		}
		if prover.MaxConcurrentProofs != nil && *prover.MaxConcurrentProofs <= 0 {
			add("prover.max_concurrent_proofs", "必须 >= 1")
		}
		if prover.MaxQueuedJobs != nil && *prover.MaxQueuedJobs <= 0 {
			add("prover.max_queued_jobs", "必须 >= 1")
		}
		duration("prover.proof_timeout", prover.ProofTimeout)
	}

	if log := appConfig.Log; log != nil && log.Level != nil {
		switch strings.ToLower(*log.Level) {
		case "debug", "info", "warn", "error", "fatal":
		default:
			add("log.level", "未知日志级别 %q", *log.Level)
		}
	}

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}
