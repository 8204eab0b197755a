package xmlns

import (
	"errors"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// ErrNoSchema 该消息类型未注册 Schema
var ErrNoSchema = errors.New("xmlns: no schema registered for message type")

// Schema 单个消息类型的结构约束。
//
// 约束来自 OTA 2003/05 XSD 的骨架部分：根元素、版本、必填根属性
// 与必需的一级子元素。完整 XSD 校验见 xvalid 的说明。
type Schema struct {
	// Type 消息类型
	Type xmsg.MessageType

	// Root 根元素本地名
	Root string

	// Version 协议版本（根属性 Version 的值）
	Version string

	// XSDPath 对应 XSD 文件的约定相对路径
	XSDPath string

	// RequiredAttrs 根元素必填属性
	RequiredAttrs []string

	// RequiredChildren 必需的一级子元素（任一缺失即结构非法）
	RequiredChildren []string
}

// registry 消息类型 → Schema。根元素名与版本为线上协议固定值。
var registry = map[xmsg.MessageType]Schema{
	xmsg.TypeInventory: {
		Type:             xmsg.TypeInventory,
		Root:             "OTA_HotelInvCountNotifRQ",
		Version:          "1.002",
		XSDPath:          "schemas/OTA_HotelInvCountNotifRQ.xsd",
		RequiredAttrs:    []string{"TimeStamp", "EchoToken", "Version"},
		RequiredChildren: []string{"Inventories"},
	},
	xmsg.TypeRates: {
		Type:             xmsg.TypeRates,
		Root:             "OTA_HotelRateNotifRQ",
		Version:          "1.002",
		XSDPath:          "schemas/OTA_HotelRateNotifRQ.xsd",
		RequiredAttrs:    []string{"TimeStamp", "EchoToken", "Version"},
		RequiredChildren: []string{"RateAmountMessages"},
	},
	xmsg.TypeReservation: {
		Type:             xmsg.TypeReservation,
		Root:             "OTA_HotelResNotifRQ",
		Version:          "1.003",
		XSDPath:          "schemas/OTA_HotelResNotifRQ.xsd",
		RequiredAttrs:    []string{"TimeStamp", "EchoToken", "Version", "ResStatus"},
		RequiredChildren: []string{"HotelReservations"},
	},
	xmsg.TypeRestrictions: {
		Type:             xmsg.TypeRestrictions,
		Root:             "OTA_HotelAvailNotifRQ",
		Version:          "1.002",
		XSDPath:          "schemas/OTA_HotelAvailNotifRQ.xsd",
		RequiredAttrs:    []string{"TimeStamp", "EchoToken", "Version"},
		RequiredChildren: []string{"AvailStatusMessages"},
	},
	xmsg.TypeGroupBlock: {
		Type:             xmsg.TypeGroupBlock,
		Root:             "OTA_HotelInvBlockNotifRQ",
		Version:          "1.001",
		XSDPath:          "schemas/OTA_HotelInvBlockNotifRQ.xsd",
		RequiredAttrs:    []string{"TimeStamp", "EchoToken", "Version"},
		RequiredChildren: []string{"InvBlocks"},
	},
}

// rootIndex 根元素名 → 消息类型，含应答根元素。
var rootIndex = func() map[string]xmsg.MessageType {
	m := make(map[string]xmsg.MessageType, len(registry)+5)
	for mt, s := range registry {
		m[s.Root] = mt
	}
	// 应答根元素（NotifRS 族）统一归类为 RESPONSE
	for _, root := range []string{
		"OTA_HotelInvCountNotifRS",
		"OTA_HotelRateNotifRS",
		"OTA_HotelResNotifRS",
		"OTA_HotelAvailNotifRS",
		"OTA_HotelInvBlockNotifRS",
	} {
		m[root] = xmsg.TypeResponse
	}
	return m
}()

// SchemaFor 返回消息类型的结构约束。
func SchemaFor(mt xmsg.MessageType) (Schema, error) {
	if s, ok := registry[mt]; ok {
		return s, nil
	}
	return Schema{}, ErrNoSchema
}

// RootFor 返回消息类型的根元素名。
func RootFor(mt xmsg.MessageType) (string, error) {
	s, err := SchemaFor(mt)
	if err != nil {
		return "", err
	}
	return s.Root, nil
}

// TypeForRoot 按 Body 根元素名反查消息类型。
// 未注册的根元素返回 TypeUnknown。
func TypeForRoot(root string) xmsg.MessageType {
	if mt, ok := rootIndex[root]; ok {
		return mt
	}
	return xmsg.TypeUnknown
}
