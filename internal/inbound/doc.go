// Package inbound 入站 SOAP 接收面。
//
// 对端（CRS）把预订等通知投递到 POST /api/travelclick/soap。
// 管道：信封解析 → WSSE 鉴权 → 消息归类 → 幂等判重 → 审计落档 →
// 分发给 PMS 侧处理器 → 同步应答确认信封（wsa:RelatesTo 关联原消息）。
//
// 所有异常统一合成 SOAP Fault：鉴权失败 401 Client，
// 校验类 400 Client，内部错误 500 Server。重放的请求
// （相同报文摘要 + 确认号且已终态）直接回放当时的应答。
package inbound
