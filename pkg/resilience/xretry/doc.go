// Package xretry 出站消息的重试引擎。
//
// # 设计理念
//
// 接口驱动：
//   - RetryPolicy：按错误分类判断是否继续重试
//   - BackoffPolicy：计算重试间隔
//
// 底层使用 [avast/retry-go/v5] 执行重试循环。与通用重试库不同，
// 本包消费 xmsg.ErrorKind 分类表：不可重试的分类（校验、认证、
// 业务规则）立即短路，分类的建议延迟作为退避下限生效——例如
// 连接类错误即使指数退避算出 10s，也至少等待 30s。
//
// # 退避策略
//
//   - ExponentialBackoff：delay = min(initial * multiplier^(n-1), max)，
//     默认 10s 起步、乘数 2.0、上限 300s
//   - LinearBackoff：delay = min(initial + increment*(n-1), max)
//   - NoBackoff：无延迟（测试用）
//
// # 使用方式
//
//	retryer := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewKindPolicy(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	)
//	err := retryer.Do(ctx, func(ctx context.Context) error {
//	    return client.Submit(ctx, envelope)
//	})
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
