package log

import (
	"time"

	"go.uber.org/zap"
)

// LogHTTPRequest writes one structured entry for a served HTTP request
func LogHTTPRequest(method, path string, status int, duration time.Duration, size int, remoteAddr, userAgent string, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.Int("size", size),
		zap.String("remote_addr", remoteAddr),
		zap.String("user_agent", userAgent),
	}

	if err != nil {
		GetZapLogger().Error("http request failed", append(fields, zap.Error(err))...)
		return
	}
	GetZapLogger().Info("http request", fields...)
}
