package log

import (
	"bytes"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// zapWriter 把zerolog输出的JSON行转写到zap
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Write(p []byte) (int, error) {
	w.logger.Debug(string(bytes.TrimSpace(p)))
	return len(p), nil
}

// BridgeGnarkLogger 将gnark内部的zerolog日志接入统一日志
//
// gnark在编译电路和setup期间输出大量调试信息，这里只保留warn及以上级别，
// 并统一打上 module=gnark 标识。进程内只需调用一次。
func BridgeGnarkLogger(base *zap.Logger) {
	if base == nil {
		gnarklogger.Disable()
		return
	}
	w := zapWriter{logger: base.With(zap.String("module", "gnark"))}
	gnarklogger.Set(zerolog.New(w).Level(zerolog.WarnLevel).With().Timestamp().Logger())
}
