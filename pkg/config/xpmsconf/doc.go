// Package xpmsconf 提供网关的分层配置服务。
//
// 单一配置文件承载全局默认（对端地址、重试策略、消息类型开关、
// SOAP 传输参数、校验规则、同步计划）与按酒店的覆盖项（凭据、
// 环境、启用的消息类型、超时）。读取按作用域缓存：
//
//   - GLOBAL 全局配置，TTL 最长
//   - PROPERTY 已解析的酒店配置
//   - CREDENTIALS 凭据，TTL 较短
//   - CACHE 临时派生值，TTL 最短
//
// 冷读经 singleflight 合并，文件变更经 fsnotify 触发按作用域
// 失效；文件内容未变（xxhash 比对）时跳过失效。
package xpmsconf
