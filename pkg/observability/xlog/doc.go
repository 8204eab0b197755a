// Package xlog 网关的结构化日志构建，基于标准库 slog。
//
// 网关各组件统一接收 *slog.Logger 注入；xlog 只负责按配置
// 组装实例：级别（支持运行期调整）、text/json 格式、源码位置，
// 以及经 xrotate 轮转的文件输出。
//
// 用法：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString(cfg.LogLevel).
//		SetFormat("json").
//		SetRotation("/var/log/tclink/gateway.log").
//		Build()
//	if err != nil { ... }
//	defer cleanup()
package xlog
