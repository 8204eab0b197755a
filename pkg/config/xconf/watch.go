package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce 变更合并窗口。
const defaultDebounce = 100 * time.Millisecond

// WatchCallback 变更回调。err 为重载结果，nil 表示新配置已生效。
type WatchCallback func(cfg Config, err error)

// WatchOption 监视器配置选项。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖窗口；窗口内的多次变更只触发一次重载。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 配置文件监视器，变更后自动 Reload 并回调。
type Watcher struct {
	cfg      *fileConfig
	fs       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// Watch 创建监视器。cfg 必须由 New 从文件创建。
// 返回后需调用 Start 或 StartAsync 进入监视循环。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	fc, ok := cfg.(*fileConfig)
	if !ok || fc.path == "" {
		return nil, ErrNotReloadable
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	// 监视目录而非文件：原子写入（写临时文件后 rename）会让
	// 对文件本身的 watch 失效
	dir := filepath.Dir(fc.path)
	if err := fs.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: watch %s: %w", dir, err), fs.Close())
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		cfg:      fc,
		fs:       fs,
		callback: callback,
		debounce: defaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start 进入监视循环，阻塞直到 Stop。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.loop()
}

// StartAsync 在后台 goroutine 中进入监视循环，立即返回。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.loop()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视。返回后不再有回调执行。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	w.running = false
	return w.fs.Close()
}

func (w *Watcher) loop() {
	target := filepath.Base(w.cfg.path)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.onEvent(ev, target)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.callback != nil {
				w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

// onEvent 过滤目标文件的 Write/Create/Rename 事件并重置防抖定时器。
func (w *Watcher) onEvent(ev fsnotify.Event, target string) {
	if filepath.Base(ev.Name) != target {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		err := w.cfg.Reload()
		if w.callback != nil {
			w.callback(w.cfg, err)
		}
	})
}
