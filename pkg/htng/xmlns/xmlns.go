package xmlns

import "errors"

var (
	// ErrUnknownPrefix 未注册的前缀
	ErrUnknownPrefix = errors.New("xmlns: unknown prefix")

	// ErrUnknownURI 未注册的命名空间 URI
	ErrUnknownURI = errors.New("xmlns: unknown namespace uri")
)

// 命名空间 URI 常量。线上协议固定值，不可调整。
const (
	// SoapEnv11 SOAP 1.1 envelope
	SoapEnv11 = "http://schemas.xmlsoap.org/soap/envelope/"

	// SoapEnv12 SOAP 1.2 envelope（出站统一使用）
	SoapEnv12 = "http://www.w3.org/2003/05/soap-envelope"

	// WSA WS-Addressing
	WSA = "http://schemas.xmlsoap.org/ws/2004/08/addressing"

	// WSAAnonymous WS-Addressing 匿名回复地址
	WSAAnonymous = "http://www.w3.org/2005/08/addressing/anonymous"

	// WSSE WS-Security secext
	WSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"

	// WSU WS-Security utility
	WSU = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	// OTA OpenTravel 2003/05
	OTA = "http://www.opentravel.org/OTA/2003/05"

	// HTN HTNG service 命名空间
	HTN = "http://htng.org/1.1/Header/"

	// XSI XML Schema instance
	XSI = "http://www.w3.org/2001/XMLSchema-instance"

	// XSD XML Schema
	XSD = "http://www.w3.org/2001/XMLSchema"

	// PasswordText WSSE PasswordText profile 类型标识
	PasswordText = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"

	// Base64Binary WSSE Nonce 编码类型标识
	Base64Binary = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

// prefixMapping 前缀 → URI 固定映射表。
var prefixMapping = map[string]string{
	"soap":    SoapEnv12,
	"soap11":  SoapEnv11,
	"wsa":     WSA,
	"wsse":    WSSE,
	"wsu":     WSU,
	"ota":     OTA,
	"htn":     HTN,
	"xsi":     XSI,
	"xsd":     XSD,
}

// uriMapping URI → 前缀反向表，由 prefixMapping 派生。
var uriMapping = func() map[string]string {
	m := make(map[string]string, len(prefixMapping))
	for p, uri := range prefixMapping {
		m[uri] = p
	}
	return m
}()

// ByPrefix 按前缀解析命名空间 URI。
func ByPrefix(prefix string) (string, error) {
	if uri, ok := prefixMapping[prefix]; ok {
		return uri, nil
	}
	return "", ErrUnknownPrefix
}

// ByURI 按命名空间 URI 解析规范前缀。
func ByURI(uri string) (string, error) {
	if p, ok := uriMapping[uri]; ok {
		return p, nil
	}
	return "", ErrUnknownURI
}

// Prefixes 返回已注册前缀的快照。
func Prefixes() map[string]string {
	out := make(map[string]string, len(prefixMapping))
	for p, uri := range prefixMapping {
		out[p] = uri
	}
	return out
}

// IsSoapEnvelope 判断 URI 是否为可接受的 SOAP envelope 命名空间。
// 入站同时接受 1.1 与 1.2。
func IsSoapEnvelope(uri string) bool {
	return uri == SoapEnv11 || uri == SoapEnv12
}
