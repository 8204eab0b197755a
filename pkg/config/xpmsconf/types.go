package xpmsconf

import (
	"slices"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// EndpointsConfig 对端地址。
type EndpointsConfig struct {
	Production string `koanf:"production"`
	Test       string `koanf:"test"`
	WSDL       string `koanf:"wsdl"`
}

// RetryPolicy 重试策略配置。
type RetryPolicy struct {
	MaxAttempts         int     `koanf:"max_attempts"`
	BackoffStrategy     string  `koanf:"backoff_strategy"`
	InitialDelaySeconds int     `koanf:"initial_delay_seconds"`
	MaxDelaySeconds     int     `koanf:"max_delay_seconds"`
	Multiplier          float64 `koanf:"multiplier"`
}

// MessageTypeConfig 按消息类型的功能开关。
type MessageTypeConfig struct {
	Enabled                  bool  `koanf:"enabled"`
	BatchSize                int   `koanf:"batch_size"`
	TimeoutSeconds           int   `koanf:"timeout_seconds"`
	CountTypes               []int `koanf:"count_types"`
	AutoSendInventoryUpdates bool  `koanf:"auto_send_inventory_updates"`
	SupportsLinkedRates      bool  `koanf:"supports_linked_rates"`
}

// SSLConfig TLS 校验开关。
type SSLConfig struct {
	VerifyPeer      bool `koanf:"verify_peer"`
	VerifyPeerName  bool `koanf:"verify_peer_name"`
	AllowSelfSigned bool `koanf:"allow_self_signed"`
}

// HTTPConfig HTTP 传输参数。
type HTTPConfig struct {
	TimeoutSeconds int `koanf:"timeout"`
}

// SoapConfig SOAP 传输配置。
type SoapConfig struct {
	Trace       bool       `koanf:"trace"`
	UserAgent   string     `koanf:"user_agent"`
	SSL         SSLConfig  `koanf:"ssl"`
	HTTP        HTTPConfig `koanf:"http"`
	Compression bool       `koanf:"compression"`
}

// LoggingConfig 日志配置。
type LoggingConfig struct {
	Level           string   `koanf:"level"`
	Channels        []string `koanf:"channels"`
	LogSoapPayloads bool     `koanf:"log_soap_payloads"`
	RetentionDays   int      `koanf:"retention_days"`
}

// CodeRule 代码字段的格式规则。
type CodeRule struct {
	Pattern   string `koanf:"pattern"`
	MinLength int    `koanf:"min_length"`
	MaxLength int    `koanf:"max_length"`
}

// ValidationRules 字段校验规则。
type ValidationRules struct {
	HotelCode    CodeRule `koanf:"hotel_code"`
	RoomTypeCode CodeRule `koanf:"room_type_code"`
	RatePlanCode CodeRule `koanf:"rate_plan_code"`
}

// SyncConfig 同步计划配置。
type SyncConfig struct {
	FullSyncSchedule   string   `koanf:"full_sync_schedule"`
	DeltaSyncInterval  int      `koanf:"delta_sync_interval"`
	Order              []string `koanf:"order"`
	ParallelProcessing bool     `koanf:"parallel_processing"`

	// EndpointConcurrency 单个对端地址的并发发送上限；0 使用默认值 8
	EndpointConcurrency int `koanf:"endpoint_concurrency"`
}

// RateLimitConfig 对端发送限流配置。零值表示不限流。
type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	Burst             int `koanf:"burst"`
}

// GlobalConfig 全局配置（文件根层级，不含 properties 段）。
type GlobalConfig struct {
	Endpoints       EndpointsConfig              `koanf:"endpoints"`
	RetryPolicy     RetryPolicy                  `koanf:"retry_policy"`
	MessageTypes    map[string]MessageTypeConfig `koanf:"message_types"`
	Soap            SoapConfig                   `koanf:"soap"`
	Logging         LoggingConfig                `koanf:"logging"`
	Validation      ValidationRules              `koanf:"validation"`
	Synchronization SyncConfig                   `koanf:"synchronization"`
	RateLimit       RateLimitConfig              `koanf:"rate_limit"`
}

// MessageType 返回指定消息类型的配置；未配置返回零值。
func (g *GlobalConfig) MessageType(t xmsg.MessageType) MessageTypeConfig {
	return g.MessageTypes[string(t)]
}

// propertySettings properties.<id> 段的文件原始形态。
type propertySettings struct {
	HotelCode           string       `koanf:"hotel_code"`
	Username            string       `koanf:"username"`
	Password            string       `koanf:"password"`
	Environment         string       `koanf:"environment"`
	Active              bool         `koanf:"active"`
	EnabledTypes        []string     `koanf:"enabled_types"`
	ExternalLinkedRates bool         `koanf:"external_system_handles_linked_rates"`
	Timeouts            timeoutsConf `koanf:"timeouts"`
	RetryPolicy         *RetryPolicy `koanf:"retry_policy"`
}

type timeoutsConf struct {
	ConnectSeconds int `koanf:"connect_seconds"`
	RequestSeconds int `koanf:"request_seconds"`
}

// Credentials 酒店的 WSSE 凭据。
type Credentials struct {
	Username  string
	Password  string
	HotelCode string
}

// PropertyConfig 已解析的酒店配置：全局默认与酒店覆盖合并后的结果。
type PropertyConfig struct {
	PropertyID  string
	HotelCode   string
	Username    string
	Password    string
	Environment xmsg.Environment

	// Endpoint 按环境解析出的对端地址
	Endpoint string

	Active       bool
	EnabledTypes []xmsg.MessageType

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Retry 酒店覆盖优先，否则为全局策略
	Retry RetryPolicy

	// ExternalLinkedRates 联动房价由对端计算（过滤）还是本端展开
	ExternalLinkedRates bool
}

// Enabled 判断消息类型是否对该酒店启用。
func (p *PropertyConfig) Enabled(t xmsg.MessageType) bool {
	return slices.Contains(p.EnabledTypes, t)
}
