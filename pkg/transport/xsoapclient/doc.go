// Package xsoapclient 提供 SOAP 出站传输客户端。
//
// 单次同步 HTTPS POST：TLS 校验、连接/请求超时、gzip、
// 原始报文留痕（审计用）。不做重试、不做业务级应答解析，
// 只把底层故障归类为统一的错误分类，供上层重试引擎决策：
//
//   - 连接超时 / 读取超时 → TIMEOUT
//   - DNS、TLS、连接拒绝 → CONNECTION
//   - HTTP 401/403 → AUTHENTICATION；429 → RATE_LIMIT；5xx → CONNECTION
//   - SOAP Fault → 按 fault code/reason 归类，鉴权类升级为 AUTHENTICATION
//   - 应答不可解析 → SOAP_XML
//
// 鉴权类 Fault 的 reason 含 "service unavailable" 或 "temporary"
// 时覆盖为可重试。
package xsoapclient
