package xsyncstatus

import (
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// SyncState 同步状态。
type SyncState string

const (
	// StateIdle 尚未同步
	StateIdle SyncState = "IDLE"

	// StateRunning 同步进行中
	StateRunning SyncState = "RUNNING"

	// StateCompleted 最近一次同步成功
	StateCompleted SyncState = "COMPLETED"

	// StateFailed 最近一次同步失败
	StateFailed SyncState = "FAILED"
)

// 健康分扣分权重。
const (
	maxHealthScore     = 100
	retryPenalty       = 2
	failurePenalty     = 30
	stalenessPenalty   = 5
	stalenessGraceDays = 1
)

// Record 单个 (property-id, message-type) 的同步聚合。
type Record struct {
	PropertyID  string           `bson:"property_id"`
	MessageType xmsg.MessageType `bson:"message_type"`

	State       SyncState  `bson:"status"`
	LastAttempt *time.Time `bson:"last_sync_attempt,omitempty"`
	LastSuccess *time.Time `bson:"last_successful_sync,omitempty"`

	RecordsTotal     int64   `bson:"records_total"`
	RecordsProcessed int64   `bson:"records_processed"`
	SuccessRate      float64 `bson:"success_rate"`

	RetryCount       int        `bson:"retry_count"`
	AutoRetryEnabled bool       `bson:"auto_retry_enabled"`
	NextRetryAt      *time.Time `bson:"next_retry_at,omitempty"`
	MaxRetries       int        `bson:"max_retries"`

	HealthScore int `bson:"health_score"`

	UpdatedAt time.Time `bson:"updated_at"`
}

// Health 按当前时刻计算健康分，范围 [0,100]。
//
// 从未成功过的聚合不计陈旧扣分（失败扣分已覆盖），
// 避免新接入酒店直接跌到 0 分。
func (r *Record) Health(now time.Time) int {
	score := maxHealthScore
	score -= retryPenalty * r.RetryCount
	if r.State == StateFailed {
		score -= failurePenalty
	}
	if r.LastSuccess != nil {
		days := int(now.Sub(*r.LastSuccess).Hours() / 24)
		if days > stalenessGraceDays {
			score -= (days - stalenessGraceDays) * stalenessPenalty
		}
	}

	if score < 0 {
		return 0
	}
	if score > maxHealthScore {
		return maxHealthScore
	}
	return score
}

// RetriesExhausted 判断自动重试预算是否已耗尽。
func (r *Record) RetriesExhausted() bool {
	return r.MaxRetries > 0 && r.RetryCount >= r.MaxRetries
}
