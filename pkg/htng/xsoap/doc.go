// Package xsoap 负责 SOAP 信封的组装与 Fault 合成。
//
// # Header
//
// HeaderBuilder 产出 HTNG 2011B 要求的完整 Header 块：
//   - wsa:MessageID / To / From（ReferenceProperties/htn:HotelCode）/ ReplyTo / Action
//   - wsse:Security/UsernameToken：PasswordText 口令、16 字节随机 nonce（base64）、
//     UTC 毫秒级 Created 时间戳
//
// 除 nonce 与时间戳外，给定输入时输出是确定的。
//
// # Envelope 与 Fault
//
// Wrap 把 OTA Body 装入 SOAP 1.2 信封；NewFault 合成标准 Fault
// （Client/Server faultcode），同时支持 1.1 与 1.2 两种形态。
package xsoap
