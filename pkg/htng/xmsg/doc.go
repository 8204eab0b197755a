// Package xmsg 定义 HTNG 2011B 网关的领域类型与错误分类体系。
//
// # 核心类型
//
//   - MessageType / Direction / CountType 等枚举：贯穿构建、解析、审计各层
//   - MessageEnvelope：不可变消息信封，携带 message-id、方向、类型与载荷
//   - InventoryItem / RatePlan / Reservation：出站消息的类型化 DTO
//   - Error / ErrorKind：统一的错误分类（可重试性、严重级别、建议延迟）
//
// # 错误分类
//
// ErrorKind 是跨层的错误标签（CONNECTION、AUTHENTICATION、VALIDATION 等），
// 每个 kind 携带固定的严重级别与可重试性。传输层、重试引擎、审计日志
// 共享同一张分类表，避免各层重复判断。
//
// DTO 在构造期执行不变量校验（字段级规则），跨字段业务规则由 xvalid 承担。
package xmsg
