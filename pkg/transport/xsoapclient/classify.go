package xsoapclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xparse"
)

// classifyNetError 把网络层错误归类为传输错误。
func (c *Client) classifyNetError(err error, endpoint string) *TransportError {
	wrap := func(cause Cause, kind xmsg.ErrorKind, msg string) *TransportError {
		return &TransportError{
			Cause:    cause,
			Endpoint: endpoint,
			Err:      xmsg.Wrap(kind, msg, err).WithEndpoint(endpoint),
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return wrap(CauseDNS, xmsg.KindConnection, "dns lookup failed")
	}

	if isTLSError(err) {
		return wrap(CauseTLS, xmsg.KindConnection, "tls handshake failed")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return wrap(CauseConnectTimeout, xmsg.KindTimeout, "connect timeout")
		}
		return wrap(CauseConnectTimeout, xmsg.KindConnection, "connect failed")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(CauseReadTimeout, xmsg.KindTimeout, "read timeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(CauseReadTimeout, xmsg.KindTimeout, "read timeout")
	}

	return wrap(CauseConnectTimeout, xmsg.KindConnection, "connection failed")
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// classifyStatus 把非 2xx 状态码归类。
// 401/403 → 鉴权；429 → 限流；5xx → 连接（可重试）；其余 4xx → 校验。
func (c *Client) classifyStatus(code int, endpoint string) *TransportError {
	var kind xmsg.ErrorKind
	switch {
	case code == 401 || code == 403:
		kind = xmsg.KindAuthentication
	case code == 429:
		kind = xmsg.KindRateLimit
	case code >= 500:
		kind = xmsg.KindConnection
	default:
		kind = xmsg.KindValidation
	}

	return &TransportError{
		Cause:      CauseHTTPStatus,
		Endpoint:   endpoint,
		StatusCode: code,
		Err:        xmsg.NewError(kind, "unexpected http status").WithEndpoint(endpoint),
	}
}

// classifyFault 把 SOAP Fault 归类，含鉴权升级规则：
// fault code 为 AUTHENTICATION_FAILED，或 reason 提及
// Unauthorized/Authentication 时升级为 AUTHENTICATION；
// 鉴权类 Fault 的 reason 含 "service unavailable" 或
// "temporary" 时覆盖为可重试（对端鉴权服务临时故障）。
func (c *Client) classifyFault(f *xparse.Fault, endpoint string) *TransportError {
	kindErr := f.AsError()

	local := f.Code
	if i := strings.LastIndexByte(local, ':'); i >= 0 {
		local = local[i+1:]
	}
	reason := strings.ToLower(f.Reason)

	if local == "AUTHENTICATION_FAILED" ||
		strings.Contains(reason, "unauthorized") ||
		strings.Contains(reason, "authentication") {
		kindErr = xmsg.NewError(xmsg.KindAuthentication, f.Reason)
	}
	if kindErr.Kind == xmsg.KindAuthentication &&
		(strings.Contains(reason, "service unavailable") || strings.Contains(reason, "temporary")) {
		kindErr = kindErr.OverrideRetryable(true)
	}

	return &TransportError{
		Cause:       CauseSoapFault,
		Endpoint:    endpoint,
		FaultCode:   f.Code,
		FaultReason: f.Reason,
		Err:         kindErr.WithEndpoint(endpoint),
	}
}
