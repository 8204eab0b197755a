// Package xbreaker 对端地址级熔断。
//
// 每个 CRS endpoint 独立一个熔断器：某一对端故障时只隔离它自己的
// 流量，其余酒店的消息不受影响。底层使用 [sony/gobreaker/v2]。
//
// # 默认参数
//
//   - 熔断条件：连续失败 5 次
//   - Open 观察期：60 秒
//   - HalfOpen 探测请求数：1
//
// # 与重试引擎的关系
//
// 熔断器错误被包装为 BreakerError，其 Retryable() 返回 false，
// xretry 遇到它会立即停止重试（快速失败而非退避等待）。
//
// # 使用方式
//
//	registry := xbreaker.NewRegistry()
//	b := registry.Get("https://crs.example.com/htng")
//	err := b.Do(ctx, func() error {
//	    return client.Submit(ctx, envelope)
//	})
//
// 健康检查接口通过 Registry.Snapshot() 汇报所有对端的熔断状态
// 与剩余观察期。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
