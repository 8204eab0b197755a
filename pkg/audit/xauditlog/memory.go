package xauditlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 内存审计存储：测试与端到端场景用。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	errors  map[string][]*ErrorLog
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		errors:  make(map[string][]*ErrorLog),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, e *Entry) error {
	if ctx == nil {
		return ErrNilContext
	}
	if e == nil {
		return ErrNilEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.MessageID == e.MessageID {
			return ErrDuplicateMessageID
		}
	}

	stored := *e
	prepareForWrite(&stored)
	s.entries[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, e *Entry) error {
	if ctx == nil {
		return ErrNilContext
	}
	if e == nil {
		return ErrNilEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[e.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != e.Version {
		return ErrVersionConflict
	}

	stored := *e
	prepareForWrite(&stored)
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	s.entries[stored.ID] = &stored

	e.Version = stored.Version
	e.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *MemoryStore) FindByMessageID(ctx context.Context, messageID string) (*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.MessageID == messageID {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByHash(ctx context.Context, xmlSHA256, confirmationNumber string) (*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 同一报文可能多次出现，取最近一条
	var latest *Entry
	for _, e := range s.entries {
		if e.XMLSHA256 != xmlSHA256 || e.ConfirmationNumber != confirmationNumber {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) Thread(ctx context.Context, parentMessageID string) ([]*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.ParentMessageID == parentMessageID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Entry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.Status == status {
			copied := *e
			out = append(out, &copied)
		}
	}
	sortByCreatedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, e := range s.entries {
		if e.Status.Terminal() && e.CreatedAt.Before(olderThan) {
			delete(s.entries, id)
			delete(s.errors, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) InsertError(ctx context.Context, el *ErrorLog) error {
	if ctx == nil {
		return ErrNilContext
	}
	if el == nil {
		return ErrNilEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[el.LogID]; !ok {
		return ErrMissingParentLog
	}
	copied := *el
	s.errors[el.LogID] = append(s.errors[el.LogID], &copied)
	return nil
}

func (s *MemoryStore) ErrorsFor(ctx context.Context, logID string) ([]*ErrorLog, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.errors[logID]
	out := make([]*ErrorLog, 0, len(list))
	for _, el := range list {
		copied := *el
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ResolveError(ctx context.Context, errorID, resolvedBy string) error {
	if ctx == nil {
		return ErrNilContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, list := range s.errors {
		for _, el := range list {
			if el.ID == errorID {
				now := time.Now().UTC()
				el.Resolved = true
				el.ResolvedAt = &now
				el.ResolvedBy = resolvedBy
				return nil
			}
		}
	}
	return ErrNotFound
}

func sortByCreatedAt(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
