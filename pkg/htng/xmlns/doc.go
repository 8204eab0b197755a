// Package xmlns 维护 HTNG 2011B 消息的命名空间表与 Schema 注册中心。
//
// # 命名空间表
//
// PREFIX_MAPPING 固定映射：soap-env(1.1/1.2)、wsa、wsse、wsu、ota、htn、xsi、xsd。
// ByPrefix / ByURI 提供双向解析。
//
// # Schema 注册中心
//
// SchemaFor(MessageType) 返回该消息类型的结构约束：根元素名、协议版本、
// 必填根属性与必需子元素。约束供 xvalid 做结构校验、xbuild 做根属性落章。
package xmlns
