package xbreaker

import (
	"sort"
	"sync"
	"time"
)

// Registry 对端地址 → 熔断器注册表
//
// 按 endpoint 惰性创建熔断器，所有实例共享同一组配置选项。
// 并发安全。
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	opts     []BreakerOption
}

// NewRegistry 创建注册表。opts 应用于每个惰性创建的熔断器。
func NewRegistry(opts ...BreakerOption) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
	}
}

// Get 返回 endpoint 的熔断器，不存在时创建。
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// double-check：锁升级期间可能已被并发创建
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	b = NewBreaker(endpoint, r.opts...)
	r.breakers[endpoint] = b
	return b
}

// Len 返回已注册的熔断器数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

// Status 单个对端的熔断状态快照。
type Status struct {
	// Endpoint 对端地址
	Endpoint string `json:"endpoint"`

	// State 当前状态（closed/half-open/open）
	State string `json:"state"`

	// ConsecutiveFailures 连续失败计数
	ConsecutiveFailures uint32 `json:"consecutive_failures"`

	// RemainingOpen Open 状态的剩余观察期，非 Open 为 0
	RemainingOpen time.Duration `json:"remaining_open"`
}

// Snapshot 返回全部对端的状态快照，按 endpoint 字典序。
// 供健康检查接口输出。
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, Status{
			Endpoint:            b.Endpoint(),
			State:               b.State().String(),
			ConsecutiveFailures: b.Counts().ConsecutiveFailures,
			RemainingOpen:       b.RemainingOpen(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}
