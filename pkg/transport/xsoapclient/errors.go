package xsoapclient

import (
	"errors"
	"fmt"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// 参数校验错误
var (
	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xsoapclient: context cannot be nil")

	// ErrEmptyEndpoint 请求缺少目标地址
	ErrEmptyEndpoint = errors.New("xsoapclient: endpoint cannot be empty")

	// ErrEmptyPayload 请求缺少报文内容
	ErrEmptyPayload = errors.New("xsoapclient: payload cannot be empty")
)

// Cause 传输层底层故障归类。
type Cause string

const (
	// CauseConnectTimeout 建连超时
	CauseConnectTimeout Cause = "CONNECT_TIMEOUT"

	// CauseReadTimeout 请求整体超时（建连成功后）
	CauseReadTimeout Cause = "READ_TIMEOUT"

	// CauseTLS TLS 握手或证书校验失败
	CauseTLS Cause = "TLS_ERROR"

	// CauseDNS 域名解析失败
	CauseDNS Cause = "DNS_FAILURE"

	// CauseHTTPStatus 非 2xx HTTP 状态码
	CauseHTTPStatus Cause = "HTTP_STATUS"

	// CauseSoapFault 对端返回 SOAP Fault
	CauseSoapFault Cause = "SOAP_FAULT"

	// CauseMalformed 应答不是可解析的 SOAP 信封
	CauseMalformed Cause = "MALFORMED_RESPONSE"
)

// TransportError 传输层错误
//
// Cause 保留底层故障形态（审计与日志用），内嵌的 xmsg.Error
// 承载统一分类与重试性判定。errors.As 可提取内层 *xmsg.Error。
type TransportError struct {
	// Cause 底层故障归类
	Cause Cause

	// Endpoint 目标地址
	Endpoint string

	// StatusCode HTTP 状态码，仅 CauseHTTPStatus 有效
	StatusCode int

	// FaultCode/FaultReason 仅 CauseSoapFault 有效
	FaultCode   string
	FaultReason string

	// Err 统一分类后的错误
	Err *xmsg.Error
}

func (e *TransportError) Error() string {
	switch e.Cause {
	case CauseHTTPStatus:
		return fmt.Sprintf("soap send %s: http status %d", e.Endpoint, e.StatusCode)
	case CauseSoapFault:
		return fmt.Sprintf("soap send %s: fault %s: %s", e.Endpoint, e.FaultCode, e.FaultReason)
	default:
		return fmt.Sprintf("soap send %s: %s: %v", e.Endpoint, e.Cause, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable 委托统一分类的重试性判定。
func (e *TransportError) Retryable() bool {
	return e.Err.Retryable()
}

// CauseOf 提取传输错误的底层故障归类；非传输错误返回空串。
func CauseOf(err error) Cause {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Cause
	}
	return ""
}
