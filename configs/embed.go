// Package configs 内置配置文件
package configs

import _ "embed"

// 嵌入各环境的配置文件
//
//go:embed prover.json
var developmentConfig []byte

//go:embed production/prover.json
var productionConfig []byte

// GetDevelopmentConfig 获取开发环境配置（badger 单机存储，debug 日志）
func GetDevelopmentConfig() []byte {
	return developmentConfig
}

// GetProductionConfig 获取生产环境配置（redis 存储，文件日志）
func GetProductionConfig() []byte {
	return productionConfig
}

// Get 按环境名获取配置，未知环境返回 nil
func Get(env string) []byte {
	switch env {
	case "development", "dev":
		return developmentConfig
	case "production", "prod":
		return productionConfig
	default:
		return nil
	}
}
