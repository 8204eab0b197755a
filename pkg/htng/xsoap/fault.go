package xsoap

import (
	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
)

// FaultCode SOAP Fault 分类
type FaultCode string

const (
	// FaultClient 调用方错误（校验、认证）
	FaultClient FaultCode = "Client"

	// FaultServer 服务端错误（内部异常）
	FaultServer FaultCode = "Server"
)

// Fault SOAP Fault 内容
type Fault struct {
	// Code Fault 分类
	Code FaultCode

	// String 人类可读的错误描述
	String string

	// Detail 附加细节（可为空，不携带内部堆栈）
	Detail string
}

// NewFault 合成 SOAP 1.1 形态的 Fault 信封。
//
// 入站管道统一用 1.1 形态应答（faultcode/faultstring 无命名空间限定），
// 与对端网关的历史行为保持一致。
func NewFault(f Fault) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", xmlns.SoapEnv11)

	body := env.CreateElement("soap:Body")
	fault := body.CreateElement("soap:Fault")

	code := fault.CreateElement("faultcode")
	code.SetText("soap:" + string(f.Code))

	fs := fault.CreateElement("faultstring")
	fs.SetText(f.String)

	if f.Detail != "" {
		detail := fault.CreateElement("detail")
		detail.SetText(f.Detail)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// NewFault12 合成 SOAP 1.2 形态的 Fault 信封（Code/Reason 结构）。
func NewFault12(f Fault) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", xmlns.SoapEnv12)

	body := env.CreateElement("soap:Body")
	fault := body.CreateElement("soap:Fault")

	code := fault.CreateElement("soap:Code")
	value := code.CreateElement("soap:Value")
	// 1.2 的标准值：Client → Sender，Server → Receiver
	if f.Code == FaultClient {
		value.SetText("soap:Sender")
	} else {
		value.SetText("soap:Receiver")
	}

	reason := fault.CreateElement("soap:Reason")
	text := reason.CreateElement("soap:Text")
	text.CreateAttr("xml:lang", "en")
	text.SetText(f.String)

	if f.Detail != "" {
		detail := fault.CreateElement("soap:Detail")
		detail.SetText(f.Detail)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}
