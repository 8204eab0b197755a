// Package xparse 入站报文解析。
//
// EnvelopeParser 同时接受 SOAP 1.1 与 1.2 信封，抽取 WS-Addressing
// 头、WSSE 凭据与 Body 业务根元素；业务解析器把 OTA Body 还原为
// xmsg 领域对象，与 xbuild 构成往返。
package xparse
