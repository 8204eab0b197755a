// Package xmsgid 生成与解析 HTNG 消息标识。
//
// # 三种模式
//
//   - Unique：<prefix>-<hotel>-<type>-<UUIDv4>，每次调用产出新标识
//   - Timestamped：在 Unique 基础上追加 UTC 紧凑时间戳 YYYYMMDDTHHMMSSmmm
//   - Idempotent：UUIDv5（固定命名空间）作用于 (hotel, type, sha256(payload))，
//     相同载荷产出相同标识，用于入站去重
//
// Parse 从标识中还原 hotel 与 type；IsValid 校验结构。
package xmsgid
