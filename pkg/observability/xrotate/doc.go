// Package xrotate 网关日志文件的轮转写入，基于 lumberjack 实现。
//
// 网关常驻运行且入出站报文日志量大，文件输出必须带轮转。
// Rotator 是 io.WriteCloser 的超集，直接作为 xlog 的输出目标；
// 按大小触发轮转，备份按数量与天数双重清理，可选 gzip 压缩。
package xrotate
