// Package xconf 网关配置文件的加载与热重载，基于 koanf 实现。
//
// 网关的全局参数与酒店档案集中在一份 YAML/JSON 文件里
// （K8s 场景由 ConfigMap 挂载），xpmsconf 在其上做分层解析与缓存。
// xconf 只负责三件事：加载、反序列化、变更监视。
// 必选字段校验与默认值注入属于上层的职责。
//
// # 并发
//
// Reload 与读取并发安全：重载先在副本上解析，成功后整体替换，
// 失败保留旧配置。Client() 返回的 koanf 实例是当时的快照，
// 需要最新值时重新调用。
//
// # 监视
//
// Watch 基于 fsnotify 监视配置文件所在目录（编辑器原子写入会
// 先删后建，直接盯文件会丢事件），内置防抖合并连续变更。
package xconf
