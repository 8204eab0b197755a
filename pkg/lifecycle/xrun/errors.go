package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNilFunc 服务函数为 nil
	ErrNilFunc = errors.New("xrun: nil service func")

	// ErrNilServer HTTP 服务器为 nil
	ErrNilServer = errors.New("xrun: nil http server")

	// ErrInvalidInterval 周期必须为正数
	ErrInvalidInterval = errors.New("xrun: interval must be positive")

	// ErrSignal 信号退出的哨兵，errors.Is(&SignalError{}) 匹配用
	ErrSignal = errors.New("xrun: signal received")
)

// SignalError 信号退出原因。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("xrun: received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal)。
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}
