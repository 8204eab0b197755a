// Package xsyncstatus 按 (property-id, message-type) 维护同步健康聚合。
//
// 每条审计记录进入终态时更新对应聚合：最近尝试/成功时间、
// 处理进度、重试计数与健康分。健康分公式：
//
//	max(0, 100 − 2·retry − 30·failure − max(0, daysSinceSuccess−1)·5)
//
// 提供三类运维查询：需要关注（健康分过低或重试耗尽）、
// 成功率过低、运行超时。
package xsyncstatus
