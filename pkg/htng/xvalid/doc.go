// Package xvalid 提供两级 XML 校验与出站业务规则校验。
//
// # XML 校验
//
// XMLValidator 分两阶段：
//  1. 流式解析检查 well-formedness（stdlib encoding/xml）
//  2. 按 xmlns 注册的 Schema 约束做结构校验：根元素、必填属性、必需子元素
//
// 失败产出 Issue{Line, Column, Code, Message} 列表。出站消息校验失败为致命
// （不进入传输）；入站消息校验失败合成 Client Fault。
//
// 说明：生态中不存在纯 Go 的 XSD 校验器（libxml2 绑定依赖 cgo），
// 结构校验覆盖 XSD 骨架约束，完整约束由对端回执兜底。
//
// # 业务规则校验
//
//   - InventoryValidator：计算法/直接法互斥、物理房量下界、日期跨度
//   - RateValidator：1 人/2 人价必填、联动主计划存在性、货币一致性
//   - ReservationValidator：档案要求、确认号规则（委托 DTO 并归类错误）
//
// 业务违例统一归类为 xmsg.KindBusinessLogic，字段级问题进 Fields。
package xvalid
