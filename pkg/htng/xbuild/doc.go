// Package xbuild 构建各消息类型的出站 OTA Body。
//
// # 约定
//
//   - 每个构建器接受类型化 DTO，产出 etree 元素树，不做传输与认证
//   - 根元素统一落章 TimeStamp、EchoToken、Version 与 OTA 命名空间
//   - 序列化确定：子元素顺序固定，日期 YYYY-MM-DD，时间 YYYY-MM-DDTHH:MM:SS
//   - 构建前先执行 xvalid 业务规则校验，违例直接拒绝
//
// # 模式
//
// 库存支持 delta（部分计数）与 overlay（整段替换，根属性 OverlayInd 标记）。
// 房价支持六种操作；联动价按 external_system_handles_linked_rates 决定
// 展开（本地派生完整计划）或过滤（仅发送主计划）。
package xbuild
