package xbreaker

import "github.com/sony/gobreaker/v2"

// 透传 sony/gobreaker/v2 的核心类型，调用方无需直接导入底层包。
type (
	// Counts 统计计数，用于熔断判定
	Counts = gobreaker.Counts

	// State 熔断器状态
	State = gobreaker.State
)

// 熔断器状态常量
const (
	// StateClosed 关闭状态（正常放行，统计失败）
	StateClosed = gobreaker.StateClosed

	// StateHalfOpen 半开状态（有限探测）
	StateHalfOpen = gobreaker.StateHalfOpen

	// StateOpen 打开状态（直接拒绝）
	StateOpen = gobreaker.StateOpen
)

// 熔断器错误
var (
	// ErrTooManyRequests 半开状态下探测请求已满
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = gobreaker.ErrOpenState
)
