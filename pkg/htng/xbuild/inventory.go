package xbuild

import (
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xvalid"
)

// InventoryInput 库存构建输入。
type InventoryInput struct {
	// HotelCode 酒店代码
	HotelCode string

	// EchoToken 对端回显的关联串
	EchoToken string

	// Items 库存条目批次（保持输入顺序）
	Items []*xmsg.InventoryItem

	// Overlay true 表示整段替换；false 为增量更新
	Overlay bool
}

// InventoryBuilder 库存消息构建器（OTA_HotelInvCountNotifRQ）。
type InventoryBuilder struct {
	validator *xvalid.InventoryValidator
	now       clock
}

// InventoryOption 构建器配置选项。
type InventoryOption func(*InventoryBuilder)

// WithInventoryClock 替换时钟（测试用）。
func WithInventoryClock(now func() time.Time) InventoryOption {
	return func(b *InventoryBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewInventoryBuilder 创建库存构建器。
func NewInventoryBuilder(opts ...InventoryOption) *InventoryBuilder {
	b := &InventoryBuilder{
		validator: xvalid.NewInventoryValidator(),
		now:       defaultClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 构建库存 Body。构建前执行全部业务规则校验。
func (b *InventoryBuilder) Build(in InventoryInput) (*etree.Element, error) {
	if err := requireHotelCode(in.HotelCode); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := b.validator.ValidateBatch(in.Items); err != nil {
		return nil, err
	}

	root, err := newRoot(xmsg.TypeInventory, in.EchoToken, b.now)
	if err != nil {
		return nil, err
	}
	if in.Overlay {
		// overlay 以根属性标记，对端据此整段替换
		root.CreateAttr("OverlayInd", "true")
	}

	inventories := root.CreateElement("Inventories")
	inventories.CreateAttr("HotelCode", in.HotelCode)

	for _, item := range in.Items {
		inv := inventories.CreateElement("Inventory")
		statusAppControl(inv, item.StartDate, item.EndDate, item.RoomTypeCode, "")

		counts := inv.CreateElement("InvCounts")
		for _, ct := range sortedCountTypes(item.Counts) {
			c := counts.CreateElement("InvCount")
			c.CreateAttr("CountType", strconv.Itoa(int(ct)))
			c.CreateAttr("Count", strconv.Itoa(item.Counts[ct]))
		}
	}

	return root, nil
}

// sortedCountTypes 计数类型升序排列，保证序列化确定性。
func sortedCountTypes(counts map[xmsg.CountType]int) []xmsg.CountType {
	out := make([]xmsg.CountType, 0, len(counts))
	for ct := range counts {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
