package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLevel 解析级别字符串（大小写不敏感）。
// 支持 debug/info/warn/error。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("xlog: unknown level %q", s)
	}
}
