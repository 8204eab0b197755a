package xsoap

import (
	"errors"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
)

// ErrNilBody Body 元素为 nil
var ErrNilBody = errors.New("xsoap: nil body element")

// Wrap 把 Header 与 OTA Body 装入 SOAP 1.2 信封并序列化。
//
// 出站统一使用 SOAP 1.2 命名空间；所有前缀声明集中在根元素，
// 保证子元素序列化的确定性。header 可为 nil（应答合成场景）。
func Wrap(header, body *etree.Element) ([]byte, error) {
	if body == nil {
		return nil, ErrNilBody
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", xmlns.SoapEnv12)
	env.CreateAttr("xmlns:wsa", xmlns.WSA)
	env.CreateAttr("xmlns:wsse", xmlns.WSSE)
	env.CreateAttr("xmlns:wsu", xmlns.WSU)
	env.CreateAttr("xmlns:htn", xmlns.HTN)
	env.CreateAttr("xmlns:xsi", xmlns.XSI)
	env.CreateAttr("xmlns:xsd", xmlns.XSD)

	if header != nil {
		env.AddChild(header)
	}

	bodyEl := env.CreateElement("soap:Body")
	bodyEl.AddChild(body)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// WrapAck 合成入站确认信封：Header 仅携带 wsa:RelatesTo 与 wsa:MessageID。
func WrapAck(ackMessageID, relatesTo string, body *etree.Element) ([]byte, error) {
	if body == nil {
		return nil, ErrNilBody
	}

	header := etree.NewElement("soap:Header")
	msgID := header.CreateElement("wsa:MessageID")
	msgID.SetText(ackMessageID)
	if relatesTo != "" {
		rel := header.CreateElement("wsa:RelatesTo")
		rel.SetText(relatesTo)
	}

	return Wrap(header, body)
}
