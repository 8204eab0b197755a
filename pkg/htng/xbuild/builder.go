package xbuild

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

var (
	// ErrEmptyBatch 批次为空
	ErrEmptyBatch = errors.New("xbuild: empty batch")

	// ErrEmptyEchoToken echo token 为空
	ErrEmptyEchoToken = errors.New("xbuild: empty echo token")
)

// 规范化时间格式。
const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02T15:04:05"
)

// clock 可替换时钟，构建器共用。
type clock func() time.Time

func defaultClock() time.Time { return time.Now().UTC() }

// newRoot 创建消息根元素并落章公共属性。
func newRoot(mt xmsg.MessageType, echoToken string, now clock) (*etree.Element, error) {
	if echoToken == "" {
		return nil, ErrEmptyEchoToken
	}
	schema, err := xmlns.SchemaFor(mt)
	if err != nil {
		return nil, err
	}

	root := etree.NewElement(schema.Root)
	root.CreateAttr("xmlns", xmlns.OTA)
	root.CreateAttr("TimeStamp", now().UTC().Format(dateTimeFormat))
	root.CreateAttr("EchoToken", echoToken)
	root.CreateAttr("Version", schema.Version)
	return root, nil
}

// Serialize 把 Body 元素序列化为字节（独立文档，两空格缩进）。
func Serialize(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, errors.New("xbuild: nil element")
	}
	doc := etree.NewDocument()
	doc.AddChild(el.Copy())
	doc.Indent(2)
	return doc.WriteToBytes()
}

// formatAmount 金额格式化为两位小数。
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatDate 日期格式化为 YYYY-MM-DD。
func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

// statusAppControl 创建 StatusApplicationControl 元素（OTA 通用日期/房型定位块）。
func statusAppControl(parent *etree.Element, start, end time.Time, invTypeCode, ratePlanCode string) *etree.Element {
	sac := parent.CreateElement("StatusApplicationControl")
	sac.CreateAttr("Start", formatDate(start))
	sac.CreateAttr("End", formatDate(end))
	if invTypeCode != "" {
		sac.CreateAttr("InvTypeCode", invTypeCode)
	} else {
		sac.CreateAttr("AllInvCode", "true")
	}
	if ratePlanCode != "" {
		sac.CreateAttr("RatePlanCode", ratePlanCode)
	}
	return sac
}

// requireHotelCode 批次内酒店代码一致性检查。
func requireHotelCode(hotelCode string) error {
	if hotelCode == "" {
		return fmt.Errorf("xbuild: %w", xmsg.ErrEmptyHotelCode)
	}
	return nil
}
