package xauditlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// ErrorLog 错误明细：一条审计记录可挂多条。
type ErrorLog struct {
	ID    string `bson:"_id"`
	LogID string `bson:"travelclick_log_id"`

	Kind     xmsg.ErrorKind `bson:"error_kind"`
	Severity int            `bson:"severity"`
	Title    string         `bson:"title"`
	Message  string         `bson:"message"`

	// Context 结构化上下文：hotel_code、endpoint、attempt、fault code 等
	Context map[string]any `bson:"context,omitempty"`

	// Suggestion 面向运维的处置提示，按错误分类给出
	Suggestion string `bson:"suggestion,omitempty"`

	CanRetry   bool       `bson:"can_retry"`
	Resolved   bool       `bson:"resolved"`
	ResolvedAt *time.Time `bson:"resolved_at,omitempty"`
	ResolvedBy string     `bson:"resolved_by,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}

// NewErrorLog 从分类错误构造错误明细。
// 严重级别、重试性与处置提示取自错误分类表。
func NewErrorLog(logID, title string, err *xmsg.Error, context map[string]any) *ErrorLog {
	if err == nil {
		return nil
	}
	return &ErrorLog{
		ID:         uuid.NewString(),
		LogID:      logID,
		Kind:       err.Kind,
		Severity:   err.Severity(),
		Title:      title,
		Message:    err.Message,
		Context:    context,
		Suggestion: err.Kind.Hint(),
		CanRetry:   err.Retryable(),
		CreatedAt:  time.Now().UTC(),
	}
}
