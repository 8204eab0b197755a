package xpmsconf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/tclink/pkg/config/xconf"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// 默认作用域 TTL 与解析默认值。
const (
	defaultGlobalTTL      = 10 * time.Minute
	defaultPropertyTTL    = 5 * time.Minute
	defaultCredentialsTTL = time.Minute
	defaultCacheTTL       = 15 * time.Second

	defaultConnectSeconds = 30
	defaultRequestSeconds = 60

	cacheNumCounters = 10_000
	cacheMaxEntries  = 4096
	cacheBufferItems = 64
)

// 作用域键前缀。
const (
	prefixGlobal      = "global:"
	prefixProperty    = "prop:"
	prefixCredentials = "cred:"
	prefixCache       = "cache:"

	keyGlobalConfig = prefixGlobal + "config"
)

// Service 分层配置服务
//
// 并发安全。所有读取走按作用域 TTL 的内存缓存，
// 冷读经 singleflight 合并。
type Service struct {
	path   string
	cfg    xconf.Config
	cache  *ristretto.Cache[string, any]
	ttls   map[xmsg.ConfigScope]time.Duration
	group  singleflight.Group
	logger *slog.Logger

	// keys 活跃缓存键集合，支持按前缀失效
	keymu sync.Mutex
	keys  map[string]struct{}

	// lastHash 最近加载的文件内容哈希，跳过无实质变更的重载
	hashmu   sync.Mutex
	lastHash uint64

	watcher *xconf.Watcher
}

// ServiceOption 配置服务选项
type ServiceOption func(*Service)

// WithScopeTTL 设置指定作用域的缓存 TTL。
func WithScopeTTL(scope xmsg.ConfigScope, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttls[scope] = ttl
		}
	}
}

// WithLogger 设置日志器。nil 使用 slog.Default()。
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 从配置文件创建服务。
// 文件格式按扩展名识别（.yaml/.yml/.json）。
func NewService(path string, opts ...ServiceOption) (*Service, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	cfg, err := xconf.New(path)
	if err != nil {
		return nil, err
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxEntries,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("xpmsconf: create cache failed: %w", err)
	}

	s := &Service{
		path:  path,
		cfg:   cfg,
		cache: cache,
		ttls: map[xmsg.ConfigScope]time.Duration{
			xmsg.ScopeGlobal:      defaultGlobalTTL,
			xmsg.ScopeProperty:    defaultPropertyTTL,
			xmsg.ScopeCredentials: defaultCredentialsTTL,
			xmsg.ScopeCache:       defaultCacheTTL,
		},
		logger: slog.Default(),
		keys:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if h, err := s.fileHash(); err == nil {
		s.lastHash = h
	}

	return s, nil
}

// GetGlobal 返回全局配置。
func (s *Service) GetGlobal(ctx context.Context) (*GlobalConfig, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	v, err := s.cached(keyGlobalConfig, xmsg.ScopeGlobal, func() (any, error) {
		var g GlobalConfig
		if err := s.cfg.Unmarshal("", &g); err != nil {
			return nil, err
		}
		return &g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GlobalConfig), nil
}

// Get 返回酒店的已解析配置：全局默认与酒店覆盖合并。
func (s *Service) Get(ctx context.Context, propertyID string) (*PropertyConfig, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	v, err := s.cached(prefixProperty+propertyID, xmsg.ScopeProperty, func() (any, error) {
		return s.resolve(ctx, propertyID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PropertyConfig), nil
}

// Credentials 返回酒店的 WSSE 凭据。
// 独立于 Get 缓存，TTL 更短，凭据轮换更快生效。
func (s *Service) Credentials(ctx context.Context, propertyID string) (*Credentials, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	v, err := s.cached(prefixCredentials+propertyID, xmsg.ScopeCredentials, func() (any, error) {
		raw, err := s.rawProperty(propertyID)
		if err != nil {
			return nil, err
		}
		return &Credentials{
			Username:  raw.Username,
			Password:  raw.Password,
			HotelCode: raw.HotelCode,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credentials), nil
}

// Endpoint 返回指定环境的对端地址。
func (s *Service) Endpoint(ctx context.Context, env xmsg.Environment) (string, error) {
	if !env.Valid() {
		return "", fmt.Errorf("%w: %q", ErrEnvironmentMismatch, env)
	}
	g, err := s.GetGlobal(ctx)
	if err != nil {
		return "", err
	}

	url := g.Endpoints.Test
	if env == xmsg.EnvProduction {
		url = g.Endpoints.Production
	}
	if url == "" {
		return "", fmt.Errorf("%w: endpoints.%s", ErrMissingConfig, env)
	}
	return url, nil
}

// FindByHotelCode 按 hotel-code 反查 property-id。
// 入站鉴权按 wsa 头的 HotelCode 定位酒店时使用。
func (s *Service) FindByHotelCode(ctx context.Context, hotelCode string) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v, err := s.cached(prefixCache+"hotel:"+hotelCode, xmsg.ScopeCache, func() (any, error) {
		ids := s.cfg.Client().MapKeys("properties")
		for _, id := range ids {
			var raw propertySettings
			if err := s.cfg.Unmarshal("properties."+id, &raw); err != nil {
				continue
			}
			if raw.HotelCode == hotelCode {
				return id, nil
			}
		}
		return nil, fmt.Errorf("%w: hotel code %s", ErrPropertyNotFound, hotelCode)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PropertyIDs 返回配置文件中声明的全部 property-id，字典序。
// 同步调度器遍历酒店时使用。
func (s *Service) PropertyIDs(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ids := s.cfg.Client().MapKeys("properties")
	sort.Strings(ids)
	return ids, nil
}

// Invalidate 失效指定作用域的全部缓存项。
func (s *Service) Invalidate(scope xmsg.ConfigScope) {
	prefix := map[xmsg.ConfigScope]string{
		xmsg.ScopeGlobal:      prefixGlobal,
		xmsg.ScopeProperty:    prefixProperty,
		xmsg.ScopeCredentials: prefixCredentials,
		xmsg.ScopeCache:       prefixCache,
	}[scope]
	if prefix == "" {
		return
	}
	s.invalidatePrefix(prefix)
}

// InvalidateProperty 失效单个酒店的配置与凭据缓存。
func (s *Service) InvalidateProperty(propertyID string) {
	s.cache.Del(prefixProperty + propertyID)
	s.cache.Del(prefixCredentials + propertyID)
	s.untrackKey(prefixProperty + propertyID)
	s.untrackKey(prefixCredentials + propertyID)
}

// InvalidateAll 失效全部缓存项。
func (s *Service) InvalidateAll() {
	s.keymu.Lock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.keys = make(map[string]struct{})
	s.keymu.Unlock()

	for _, k := range keys {
		s.cache.Del(k)
	}
}

// Reload 重新加载配置文件并失效缓存。
// 文件内容哈希未变化时跳过失效。
func (s *Service) Reload() error {
	if err := s.cfg.Reload(); err != nil {
		return err
	}
	s.invalidateIfChanged()
	return nil
}

// StartWatch 启动文件监视：变更自动重载并失效缓存。
// callback 可为 nil；非 nil 时在每次重载后调用（err 为重载结果）。
func (s *Service) StartWatch(callback func(err error)) error {
	w, err := xconf.Watch(s.cfg, func(_ xconf.Config, err error) {
		if err != nil {
			s.logger.Warn("config reload failed", slog.String("path", s.path), slog.Any("error", err))
		} else {
			s.invalidateIfChanged()
		}
		if callback != nil {
			callback(err)
		}
	})
	if err != nil {
		return err
	}
	s.watcher = w
	w.StartAsync()
	return nil
}

// Close 停止监视并释放缓存。
func (s *Service) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Stop()
	}
	s.cache.Close()
	return err
}

// =============================================================================
// 内部实现
// =============================================================================

func (s *Service) cached(key string, scope xmsg.ConfigScope, load func() (any, error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		s.cache.SetWithTTL(key, v, 1, s.ttls[scope])
		s.cache.Wait()
		s.trackKey(key)
		return v, nil
	})
	return v, err
}

func (s *Service) trackKey(key string) {
	s.keymu.Lock()
	s.keys[key] = struct{}{}
	s.keymu.Unlock()
}

func (s *Service) untrackKey(key string) {
	s.keymu.Lock()
	delete(s.keys, key)
	s.keymu.Unlock()
}

func (s *Service) invalidatePrefix(prefix string) {
	s.keymu.Lock()
	var hit []string
	for k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			hit = append(hit, k)
			delete(s.keys, k)
		}
	}
	s.keymu.Unlock()

	for _, k := range hit {
		s.cache.Del(k)
	}
}

func (s *Service) invalidateIfChanged() {
	h, err := s.fileHash()
	if err != nil {
		s.InvalidateAll()
		return
	}

	s.hashmu.Lock()
	changed := h != s.lastHash
	s.lastHash = h
	s.hashmu.Unlock()

	if changed {
		s.InvalidateAll()
		s.logger.Info("config reloaded", slog.String("path", s.path))
	}
}

func (s *Service) fileHash() (uint64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

func (s *Service) rawProperty(propertyID string) (*propertySettings, error) {
	if !s.cfg.Client().Exists("properties." + propertyID) {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, propertyID)
	}
	var raw propertySettings
	if err := s.cfg.Unmarshal("properties."+propertyID, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// resolve 合并全局默认与酒店覆盖。
func (s *Service) resolve(ctx context.Context, propertyID string) (*PropertyConfig, error) {
	raw, err := s.rawProperty(propertyID)
	if err != nil {
		return nil, err
	}

	env := xmsg.Environment(raw.Environment)
	if !env.Valid() {
		return nil, fmt.Errorf("%w: property %s has environment %q", ErrEnvironmentMismatch, propertyID, raw.Environment)
	}

	endpoint, err := s.Endpoint(ctx, env)
	if err != nil {
		return nil, err
	}

	g, err := s.GetGlobal(ctx)
	if err != nil {
		return nil, err
	}

	connect := raw.Timeouts.ConnectSeconds
	if connect <= 0 {
		connect = defaultConnectSeconds
	}
	request := raw.Timeouts.RequestSeconds
	if request <= 0 {
		request = g.Soap.HTTP.TimeoutSeconds
	}
	if request <= 0 {
		request = defaultRequestSeconds
	}

	retry := g.RetryPolicy
	if raw.RetryPolicy != nil {
		retry = *raw.RetryPolicy
	}

	enabled := make([]xmsg.MessageType, 0, len(raw.EnabledTypes))
	for _, t := range raw.EnabledTypes {
		enabled = append(enabled, xmsg.MessageType(t))
	}

	return &PropertyConfig{
		PropertyID:          propertyID,
		HotelCode:           raw.HotelCode,
		Username:            raw.Username,
		Password:            raw.Password,
		Environment:         env,
		Endpoint:            endpoint,
		Active:              raw.Active,
		EnabledTypes:        enabled,
		ConnectTimeout:      time.Duration(connect) * time.Second,
		RequestTimeout:      time.Duration(request) * time.Second,
		Retry:               retry,
		ExternalLinkedRates: raw.ExternalLinkedRates,
	}, nil
}
