package xmsg

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind 跨层错误分类标签
//
// 每个 kind 对应固定的严重级别（1=致命 … 4=轻微）、可重试性与建议延迟。
// 分类表是传输层、重试引擎与审计日志的共同依据。
type ErrorKind string

const (
	// KindConnection 网络可达性故障：连接拒绝、DNS、TLS 握手
	KindConnection ErrorKind = "CONNECTION"

	// KindAuthentication WSSE 认证被拒、HTTP 401
	KindAuthentication ErrorKind = "AUTHENTICATION"

	// KindValidation Schema、well-formedness 或字段规则校验失败
	KindValidation ErrorKind = "VALIDATION"

	// KindSoapXML 应答不可解析或服务端 SOAP Fault
	KindSoapXML ErrorKind = "SOAP_XML"

	// KindBusinessLogic 库存/房价/预订业务规则违例
	KindBusinessLogic ErrorKind = "BUSINESS_LOGIC"

	// KindRateLimit HTTP 429 或配额类 fault code
	KindRateLimit ErrorKind = "RATE_LIMIT"

	// KindTimeout 连接或读取超时
	KindTimeout ErrorKind = "TIMEOUT"

	// KindConfiguration 配置缺失或非法
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindDataMapping 跨系统数据映射失败
	KindDataMapping ErrorKind = "DATA_MAPPING"

	// KindUnknown 未分类错误（允许重试一次）
	KindUnknown ErrorKind = "UNKNOWN"
)

// kindProfile 每个 ErrorKind 的固定属性。
type kindProfile struct {
	severity   int
	retryable  bool
	delay      time.Duration
	maxRetries int
	hint       string
}

// kindTable 分类属性表。
// 数值来自协议运营经验：连接类至少等 30s，认证类固定 60s 观察期。
// maxRetries=0 表示只受配置的重试预算约束；UNKNOWN 最多探测性重试一次。
var kindTable = map[ErrorKind]kindProfile{
	KindConnection:     {severity: 2, retryable: true, delay: 30 * time.Second, hint: "检查网络连通性与对端域名解析"},
	KindAuthentication: {severity: 1, retryable: false, delay: 60 * time.Second, hint: "核对酒店 WSSE 凭证与账号激活状态"},
	KindValidation:     {severity: 3, retryable: false, delay: 0, hint: "修正消息字段后重新提交"},
	KindSoapXML:        {severity: 2, retryable: true, delay: 30 * time.Second, hint: "对端服务异常，关注其状态公告"},
	KindBusinessLogic:  {severity: 2, retryable: false, delay: 0, hint: "检查库存/房价/预订数据的业务一致性"},
	KindRateLimit:      {severity: 3, retryable: true, delay: 20 * time.Second, hint: "降低发送频率或调整限流配置"},
	KindTimeout:        {severity: 2, retryable: true, delay: 10 * time.Second, hint: "检查超时配置与对端负载"},
	KindConfiguration:  {severity: 1, retryable: false, delay: 0, hint: "补全或修正酒店配置项"},
	KindDataMapping:    {severity: 3, retryable: false, delay: 0, hint: "检查房型/价格代码映射表"},
	KindUnknown:        {severity: 2, retryable: true, delay: 10 * time.Second, maxRetries: 1, hint: "查看错误日志详情"},
}

// Severity 返回 kind 的严重级别（1=致命 … 4=轻微）。
// 未识别的 kind 按 KindUnknown 处理。
func (k ErrorKind) Severity() int {
	if p, ok := kindTable[k]; ok {
		return p.severity
	}
	return kindTable[KindUnknown].severity
}

// Retryable 返回 kind 的默认可重试性。
func (k ErrorKind) Retryable() bool {
	if p, ok := kindTable[k]; ok {
		return p.retryable
	}
	return kindTable[KindUnknown].retryable
}

// SuggestedDelay 返回 kind 的建议重试延迟下限。
func (k ErrorKind) SuggestedDelay() time.Duration {
	if p, ok := kindTable[k]; ok {
		return p.delay
	}
	return kindTable[KindUnknown].delay
}

// MaxRetries 返回 kind 的重试次数上限；0 表示仅受配置的重试预算约束。
func (k ErrorKind) MaxRetries() int {
	if p, ok := kindTable[k]; ok {
		return p.maxRetries
	}
	return kindTable[KindUnknown].maxRetries
}

// Hint 返回面向运维的处置建议。
func (k ErrorKind) Hint() string {
	if p, ok := kindTable[k]; ok {
		return p.hint
	}
	return kindTable[KindUnknown].hint
}

// FieldIssue 字段级校验问题
type FieldIssue struct {
	// Field 字段名（点分路径，如 "rates[0].currency"）
	Field string

	// Rule 被违反的规则标识
	Rule string

	// Value 实际值的字符串表示
	Value string
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("%s: %s (value=%q)", i.Field, i.Rule, i.Value)
}

// Error 带分类标签的网关错误
//
// 统一了源系统中两套校验异常的形态：字段级问题放 Fields，
// 非阻断性提示放 Warnings。Retryable() 供重试引擎消费，
// 可被 retryableOverride 覆盖（如"临时性"认证失败）。
type Error struct {
	// Kind 错误分类
	Kind ErrorKind

	// Message 人类可读的错误描述
	Message string

	// HotelCode 关联的酒店代码（可为空）
	HotelCode string

	// Endpoint 关联的对端地址（可为空）
	Endpoint string

	// Fields 字段级校验问题（可为空）
	Fields []FieldIssue

	// Warnings 非阻断性提示（可为空）
	Warnings []string

	// Err 被包装的底层错误
	Err error

	// retryableOverride 非 nil 时覆盖 Kind 的默认可重试性
	retryableOverride *bool
}

// NewError 创建分类错误。
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 创建包装底层错误的分类错误。
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithHotel 附加酒店代码，返回自身便于链式调用。
func (e *Error) WithHotel(hotelCode string) *Error {
	e.HotelCode = hotelCode
	return e
}

// WithEndpoint 附加对端地址。
func (e *Error) WithEndpoint(endpoint string) *Error {
	e.Endpoint = endpoint
	return e
}

// WithFields 附加字段级问题。
func (e *Error) WithFields(fields ...FieldIssue) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// WithWarnings 附加非阻断性提示。
func (e *Error) WithWarnings(warnings ...string) *Error {
	e.Warnings = append(e.Warnings, warnings...)
	return e
}

// OverrideRetryable 覆盖默认可重试性。
// 用于"service unavailable/temporary"字样的认证失败等特例。
func (e *Error) OverrideRetryable(retryable bool) *Error {
	e.retryableOverride = &retryable
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 返回此错误是否可重试。
func (e *Error) Retryable() bool {
	if e.retryableOverride != nil {
		return *e.retryableOverride
	}
	return e.Kind.Retryable()
}

// Severity 返回此错误的严重级别。
func (e *Error) Severity() int { return e.Kind.Severity() }

// KindOf 提取错误的分类标签。
// 非 *Error 的错误返回 KindUnknown；nil 返回空串。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsRetryable 判断错误是否可重试。
// 规则与 kind 表一致；实现 Retryable() 接口的错误按其返回值判断，
// 其余未分类错误按 KindUnknown（可重试一次）处理。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return KindUnknown.Retryable()
}
