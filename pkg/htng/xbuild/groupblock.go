package xbuild

import (
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// GroupBlockInput 团队房块构建输入。
type GroupBlockInput struct {
	// EchoToken 对端回显的关联串
	EchoToken string

	// Blocks 房块批次（保持输入顺序）
	Blocks []*xmsg.GroupBlock
}

// GroupBlockBuilder 团队房块构建器（OTA_HotelInvBlockNotifRQ）。
type GroupBlockBuilder struct {
	now clock
}

// GroupBlockOption 构建器配置选项。
type GroupBlockOption func(*GroupBlockBuilder)

// WithGroupBlockClock 替换时钟（测试用）。
func WithGroupBlockClock(now func() time.Time) GroupBlockOption {
	return func(b *GroupBlockBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewGroupBlockBuilder 创建团队房块构建器。
func NewGroupBlockBuilder(opts ...GroupBlockOption) *GroupBlockBuilder {
	b := &GroupBlockBuilder{now: defaultClock}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 构建团队房块 Body。
func (b *GroupBlockBuilder) Build(in GroupBlockInput) (*etree.Element, error) {
	if len(in.Blocks) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, blk := range in.Blocks {
		if err := blk.Validate(); err != nil {
			return nil, xmsg.Wrap(xmsg.KindBusinessLogic, "invalid group block", err).WithHotel(blk.HotelCode)
		}
	}

	root, err := newRoot(xmsg.TypeGroupBlock, in.EchoToken, b.now)
	if err != nil {
		return nil, err
	}

	blocks := root.CreateElement("InvBlocks")
	blocks.CreateAttr("HotelCode", in.Blocks[0].HotelCode)

	for _, blk := range in.Blocks {
		el := blocks.CreateElement("InvBlock")
		el.CreateAttr("InvBlockCode", blk.BlockCode)
		if blk.Name != "" {
			el.CreateAttr("InvBlockLongName", blk.Name)
		}
		if blk.RatePlanCode != "" {
			el.CreateAttr("RatePlanCode", blk.RatePlanCode)
		}

		dates := el.CreateElement("InvBlockDates")
		dates.CreateAttr("Start", formatDate(blk.StartDate))
		dates.CreateAttr("End", formatDate(blk.EndDate))
		if !blk.CutoffDate.IsZero() {
			dates.CreateAttr("AbsoluteCutoff", formatDate(blk.CutoffDate))
		}

		roomTypes := el.CreateElement("RoomTypes")
		for _, code := range sortedRoomTypes(blk.Allocations) {
			rt := roomTypes.CreateElement("RoomType")
			rt.CreateAttr("RoomTypeCode", code)
			rt.CreateAttr("NumberOfUnits", strconv.Itoa(blk.Allocations[code]))
		}
	}

	return root, nil
}

// sortedRoomTypes 房型代码字典序排列，保证序列化确定性。
func sortedRoomTypes(allocations map[string]int) []string {
	out := make([]string, 0, len(allocations))
	for code := range allocations {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
