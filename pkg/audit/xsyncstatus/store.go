package xsyncstatus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Store 同步聚合存储接口。
type Store interface {
	// Get 按 (property-id, message-type) 读取；不存在返回 ErrNotFound。
	Get(ctx context.Context, propertyID string, messageType xmsg.MessageType) (*Record, error)

	// Upsert 按主键写入或覆盖。
	Upsert(ctx context.Context, r *Record) error

	// List 返回全部聚合，按 (property-id, message-type) 字典序。
	List(ctx context.Context) ([]*Record, error)
}

type recordKey struct {
	propertyID  string
	messageType xmsg.MessageType
}

// MemoryStore 内存聚合存储：测试与端到端场景用。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]*Record)}
}

func (s *MemoryStore) Get(ctx context.Context, propertyID string, messageType xmsg.MessageType) (*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordKey{propertyID, messageType}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, r *Record) error {
	if ctx == nil {
		return ErrNilContext
	}
	if r == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	stored.UpdatedAt = time.Now().UTC()
	s.records[recordKey{r.PropertyID, r.MessageType}] = &stored
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PropertyID != out[j].PropertyID {
			return out[i].PropertyID < out[j].PropertyID
		}
		return out[i].MessageType < out[j].MessageType
	})
	return out, nil
}
