package xauditlog

import (
	"context"
	"fmt"
	"time"
)

// maxInlinePayload 入库报文的内联上限；超限截断并保留摘要引用。
const maxInlinePayload = 256 << 10

// Store 审计日志存储接口。
type Store interface {
	// Insert 插入新记录。message-id 重复返回 ErrDuplicateMessageID。
	Insert(ctx context.Context, e *Entry) error

	// Update 按 (id, version) 乐观更新；版本不匹配返回
	// ErrVersionConflict。成功后 e.Version 递增。
	Update(ctx context.Context, e *Entry) error

	// FindByID 按 id 查找。
	FindByID(ctx context.Context, id string) (*Entry, error)

	// FindByMessageID 按 message-id 查找。
	FindByMessageID(ctx context.Context, messageID string) (*Entry, error)

	// FindByHash 按 (xml-sha256, confirmation-number) 查找，
	// 入站幂等回放用。未命中返回 ErrNotFound。
	FindByHash(ctx context.Context, xmlSHA256, confirmationNumber string) (*Entry, error)

	// Thread 返回 parent-message-id 指向给定消息的全部后续记录，
	// 按创建时间升序。
	Thread(ctx context.Context, parentMessageID string) ([]*Entry, error)

	// ListByStatus 按状态列出记录，按创建时间升序，limit <= 0 不限。
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Entry, error)

	// Cleanup 删除早于 olderThan 的终态记录，返回删除数量。
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)

	// InsertError 插入错误明细；引用的审计记录不存在时返回
	// ErrMissingParentLog。
	InsertError(ctx context.Context, el *ErrorLog) error

	// ErrorsFor 返回指定审计记录的全部错误明细，按创建时间升序。
	ErrorsFor(ctx context.Context, logID string) ([]*ErrorLog, error)

	// ResolveError 标记错误明细已处置。
	ResolveError(ctx context.Context, errorID, resolvedBy string) error
}

// truncatePayload 内联超限时截断，返回 (内联内容, 摘要引用)。
func truncatePayload(payload string) (string, string) {
	if len(payload) <= maxInlinePayload {
		return payload, ""
	}
	ref := fmt.Sprintf("sha256:%s;bytes=%d", PayloadHash([]byte(payload)), len(payload))
	return payload[:maxInlinePayload], ref
}

// prepareForWrite 入库前的报文截断处理。
func prepareForWrite(e *Entry) {
	if inline, ref := truncatePayload(e.RequestXML); ref != "" {
		e.RequestXML, e.RequestBlobRef = inline, ref
	}
	if inline, ref := truncatePayload(e.ResponseXML); ref != "" {
		e.ResponseXML, e.ResponseBlobRef = inline, ref
	}
}
