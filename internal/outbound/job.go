package outbound

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Priority 任务优先级。
type Priority string

const (
	// PriorityNormal 常规任务
	PriorityNormal Priority = "NORMAL"

	// PriorityHigh 高优先级任务（紧急取消、整段覆盖同步），
	// 仅在自己的 (property, type) 键对内插队
	PriorityHigh Priority = "HIGH"
)

// InventoryJob 库存任务载荷。
type InventoryJob struct {
	Items   []*xmsg.InventoryItem `json:"items"`
	Overlay bool                  `json:"overlay,omitempty"`
}

// RateJob 房价任务载荷。
type RateJob struct {
	Operation xmsg.RateOperation `json:"operation"`
	Plans     []*xmsg.RatePlan   `json:"plans"`
}

// ReservationJob 预订任务载荷。
type ReservationJob struct {
	Reservation *xmsg.Reservation `json:"reservation"`
}

// RestrictionJob 可售限制任务载荷。
type RestrictionJob struct {
	Restrictions []*xmsg.Restriction `json:"restrictions"`
}

// GroupBlockJob 团队房块任务载荷。
type GroupBlockJob struct {
	Blocks []*xmsg.GroupBlock `json:"blocks"`
}

// Job 一次出站发送任务。载荷按消息类型五选一。
//
// 任务经 JSON 序列化入队，字段须保持可编解码。
type Job struct {
	// ID 任务唯一标识（sonyflake base36）
	ID string `json:"id"`

	// BatchID 同一批拆分任务共享的批次标识
	BatchID string `json:"batch_id,omitempty"`

	PropertyID string           `json:"property_id"`
	HotelCode  string           `json:"hotel_code"`
	Type       xmsg.MessageType `json:"type"`
	Priority   Priority         `json:"priority"`

	// MessageID 提交时分配，重试复用，对端据此幂等
	MessageID string `json:"message_id"`

	// ParentMessageID 链式任务指向触发它的消息
	ParentMessageID string `json:"parent_message_id,omitempty"`

	// AuditID 关联的审计记录
	AuditID string `json:"audit_id"`

	// Attempt 已消耗的发送尝试次数
	Attempt int `json:"attempt"`

	EnqueuedAt time.Time `json:"enqueued_at"`

	// NotBefore 延迟任务的就绪时间；零值立即可取
	NotBefore time.Time `json:"not_before,omitzero"`

	Inventory    *InventoryJob   `json:"inventory,omitempty"`
	Rates        *RateJob        `json:"rates,omitempty"`
	Reservation  *ReservationJob `json:"reservation,omitempty"`
	Restrictions *RestrictionJob `json:"restrictions,omitempty"`
	GroupBlock   *GroupBlockJob  `json:"group_block,omitempty"`
}

// PairKey 返回排序键对 "<property-id>/<message-type>"。
func (j *Job) PairKey() string {
	return j.PropertyID + "/" + string(j.Type)
}

// RecordCount 返回本任务承载的业务记录数，同步聚合统计用。
func (j *Job) RecordCount() int64 {
	switch {
	case j.Inventory != nil:
		return int64(len(j.Inventory.Items))
	case j.Rates != nil:
		return int64(len(j.Rates.Plans))
	case j.Reservation != nil:
		return 1
	case j.Restrictions != nil:
		return int64(len(j.Restrictions.Restrictions))
	case j.GroupBlock != nil:
		return int64(len(j.GroupBlock.Blocks))
	default:
		return 0
	}
}

// Validate 校验任务骨架：标识齐全且载荷与消息类型匹配。
func (j *Job) Validate() error {
	if j == nil {
		return ErrNilJob
	}
	if j.PropertyID == "" {
		return ErrEmptyPropertyID
	}
	var ok bool
	switch j.Type {
	case xmsg.TypeInventory:
		ok = j.Inventory != nil && len(j.Inventory.Items) > 0
	case xmsg.TypeRates:
		ok = j.Rates != nil && len(j.Rates.Plans) > 0
	case xmsg.TypeReservation:
		ok = j.Reservation != nil && j.Reservation.Reservation != nil
	case xmsg.TypeRestrictions:
		ok = j.Restrictions != nil && len(j.Restrictions.Restrictions) > 0
	case xmsg.TypeGroupBlock:
		ok = j.GroupBlock != nil && len(j.GroupBlock.Blocks) > 0
	default:
		return fmt.Errorf("%w: %s", ErrMissingPayload, j.Type)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingPayload, j.Type)
	}
	return nil
}

// encodeJob 任务入队序列化。
func encodeJob(j *Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("outbound: encode job %s: %w", j.ID, err)
	}
	return data, nil
}

// decodeJob 任务出队反序列化。
func decodeJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("outbound: decode job: %w", err)
	}
	return &j, nil
}
