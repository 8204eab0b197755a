package xmsgid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

var (
	// ErrEmptyHotel hotel 标识为空
	ErrEmptyHotel = errors.New("xmsgid: empty hotel id")

	// ErrInvalidMessageID 标识结构非法
	ErrInvalidMessageID = errors.New("xmsgid: invalid message id")
)

// DefaultPrefix 默认标识前缀。
const DefaultPrefix = "PMS"

// timestampFormat 紧凑时间戳格式 YYYYMMDDTHHMMSSmmm。
const timestampFormat = "20060102T150405.000"

// idempotentNamespace UUIDv5 固定命名空间。
// 固定值保证跨进程、跨重启的幂等标识稳定，不可变更。
var idempotentNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// idPattern 标识结构：prefix-hotel-type-uuid[-timestamp]。
// hotel 允许连字符；type 限定大写与下划线，保证解析无歧义。
var idPattern = regexp.MustCompile(
	`^([A-Za-z0-9]+)-([A-Za-z0-9_-]{1,20})-([A-Z_]+)-` +
		`([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})` +
		`(?:-(\d{8}T\d{6}\d{3}))?$`)

// Generator 消息标识生成器。
type Generator struct {
	prefix  string
	nowFunc func() time.Time
}

// Option 生成器配置选项。
type Option func(*Generator)

// WithPrefix 设置标识前缀。默认 PMS。
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithClock 替换时钟（测试用）。
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.nowFunc = now
		}
	}
}

// New 创建生成器。
func New(opts ...Option) *Generator {
	g := &Generator{
		prefix:  DefaultPrefix,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Unique 生成唯一标识：<prefix>-<hotel>-<type>-<UUIDv4>。
func (g *Generator) Unique(hotel string, mt xmsg.MessageType) (string, error) {
	if hotel == "" {
		return "", ErrEmptyHotel
	}
	if !mt.Valid() {
		return "", xmsg.ErrInvalidMessageType
	}
	return fmt.Sprintf("%s-%s-%s-%s", g.prefix, hotel, mt, uuid.NewString()), nil
}

// Timestamped 生成携带 UTC 紧凑时间戳的唯一标识。
func (g *Generator) Timestamped(hotel string, mt xmsg.MessageType) (string, error) {
	base, err := g.Unique(hotel, mt)
	if err != nil {
		return "", err
	}
	ts := g.nowFunc().UTC().Format(timestampFormat)
	// 去掉格式中的小数点得到 YYYYMMDDTHHMMSSmmm
	return base + "-" + ts[:15] + ts[16:], nil
}

// Idempotent 生成幂等标识：相同 (hotel, type, payload) 产出相同结果。
//
// UUIDv5 作用于 hotel|type|sha256(payload) 串联，命名空间固定。
func (g *Generator) Idempotent(hotel string, mt xmsg.MessageType, payload []byte) (string, error) {
	if hotel == "" {
		return "", ErrEmptyHotel
	}
	if !mt.Valid() {
		return "", xmsg.ErrInvalidMessageType
	}

	sum := sha256.Sum256(payload)
	name := hotel + "|" + string(mt) + "|" + hex.EncodeToString(sum[:])
	id := uuid.NewSHA1(idempotentNamespace, []byte(name))

	return fmt.Sprintf("%s-%s-%s-%s", g.prefix, hotel, mt, id), nil
}

// Parsed 标识解析结果。
type Parsed struct {
	// Prefix 标识前缀
	Prefix string

	// Hotel 酒店标识
	Hotel string

	// Type 消息类型
	Type xmsg.MessageType

	// Timestamp 时间戳（Timestamped 模式外为零值）
	Timestamp time.Time
}

// Parse 解析消息标识，还原 hotel 与 type。
func Parse(id string) (Parsed, error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return Parsed{}, ErrInvalidMessageID
	}

	mt := xmsg.MessageType(m[3])
	if !mt.Valid() {
		return Parsed{}, ErrInvalidMessageID
	}

	p := Parsed{Prefix: m[1], Hotel: m[2], Type: mt}
	if m[5] != "" {
		// 还原小数点后解析：YYYYMMDDTHHMMSS + mmm
		ts, err := time.Parse(timestampFormat, m[5][:15]+"."+m[5][15:])
		if err != nil {
			return Parsed{}, ErrInvalidMessageID
		}
		p.Timestamp = ts.UTC()
	}
	return p, nil
}

// IsValid 校验标识结构是否合法。
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}
