// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xrotate: 日志文件轮转
//
// 指标直接使用 OpenTelemetry：出站传输与任务编排各自注册
// 计数器与直方图，不再包一层统一接口。
package observability
