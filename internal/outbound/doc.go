// Package outbound 出站编排：把 PMS 侧的库存/房价/预订/限制/房块变更
// 组装为 HTNG 2011B 消息并发送到对端。
//
// 每个变更是一个任务（Job），按固定状态机推进：
//
//	NEW → VALIDATE → CIRCUIT_CHECK → BUILD_HEADERS → SEND → PARSE_RESPONSE → UPDATE_LOG → (CHAIN|DONE)
//
// 排序约束：同一 (property-id, message-type) 的任务串行执行，
// 由分布式栅栏保证；高优先级任务仅在自己的键对内插队。
// 跨键对的任务并行执行，受对端并发上限与限流约束。
//
// 重试通过延迟重新入队实现：退避延迟由 xretry 的退避策略计算，
// 熔断开启时延迟取熔断器剩余恢复时间，不消耗重试预算。
package outbound
