// Package xauditlog 提供消息级审计日志存储。
//
// 每条出入站消息对应一条审计记录（Entry），记录原始报文、
// 状态机流转、重试计数与错误上下文。存储抽象为 Store 接口，
// 提供 MongoDB 与内存两个实现：
//
//   - 状态流转带乐观并发控制（id + version），并发 worker
//     丢失更新直接报冲突
//   - 超限报文截断入库，保留完整内容的摘要引用
//   - xml-sha256 + 确认号的组合唯一，支撑入站幂等回放
//   - 错误明细（ErrorLog）与审计记录应用层外键校验
package xauditlog
