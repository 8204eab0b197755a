package xsoapclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xparse"
)

// 默认传输参数。
const (
	defaultConnectTimeout = 30 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultUserAgent      = "tclink/1.0"

	// maxResponseBytes 应答体读取上限，防御异常大包
	maxResponseBytes = 16 << 20

	contentTypeSoap12 = "application/soap+xml; charset=utf-8"
)

// Request 单次出站发送请求。
type Request struct {
	// Endpoint 目标地址
	Endpoint string

	// HotelCode 酒店代码（日志与指标标注）
	HotelCode string

	// MessageType 消息类型（日志与指标标注）
	MessageType xmsg.MessageType

	// Payload 完整 SOAP 信封字节
	Payload []byte

	// Timeout 请求超时覆盖；0 使用客户端默认
	Timeout time.Duration
}

// Trace 单次发送的原始报文留痕，供审计记录。
type Trace struct {
	Endpoint     string
	RequestBody  []byte
	ResponseBody []byte
	StatusCode   int
	StartedAt    time.Time
	Duration     time.Duration
}

// Result 发送结果。收到 HTTP 应答即返回非 nil Result，
// 即使随后归类为错误（Fault、非 2xx），留痕不丢失。
type Result struct {
	// StatusCode HTTP 状态码
	StatusCode int

	// Body 应答体（已解压）
	Body []byte

	// Envelope 已解析的应答信封；应答不可解析时为 nil
	Envelope *xparse.Envelope

	// Duration 本次发送耗时
	Duration time.Duration

	// Trace 原始报文留痕；未开启留痕时为 nil
	Trace *Trace
}

// Client SOAP 出站传输客户端
//
// 并发安全，单实例可服务多个对端地址。不做重试与熔断，
// 这些由上层的 xretry/xbreaker 组合承担。
type Client struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	requestTimeout time.Duration
	userAgent      string
	verifyPeer     bool
	verifyName     bool
	compression    bool
	captureTrace   bool
	tlsConfig      *tls.Config
	logger         *slog.Logger
	metrics        *sendMetrics
	meterProvider  metric.MeterProvider
	parser         *xparse.EnvelopeParser
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithConnectTimeout 设置建连超时。默认 30 秒。
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithRequestTimeout 设置请求整体超时。默认 60 秒，
// 可被 Request.Timeout 按消息类型覆盖。
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithUserAgent 设置 User-Agent。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTLSVerification 设置证书链与主机名校验开关。
// 默认两者均开启；对端使用自签证书的测试环境可关闭。
func WithTLSVerification(verifyPeer, verifyName bool) ClientOption {
	return func(c *Client) {
		c.verifyPeer = verifyPeer
		c.verifyName = verifyName
	}
}

// WithTLSConfig 直接指定 TLS 配置，覆盖 WithTLSVerification。
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// WithCompression 设置是否接受 gzip 压缩应答。默认开启。
func WithCompression(enabled bool) ClientOption {
	return func(c *Client) {
		c.compression = enabled
	}
}

// WithTrace 设置是否留存原始请求/应答报文。默认关闭。
func WithTrace(enabled bool) ClientOption {
	return func(c *Client) {
		c.captureTrace = enabled
	}
}

// WithLogger 设置日志器。nil 使用 slog.Default()。
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMeterProvider 设置 OTel MeterProvider。
// 默认使用全局 provider。
func WithMeterProvider(p metric.MeterProvider) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.meterProvider = p
		}
	}
}

// WithHTTPClient 直接指定底层 HTTP 客户端（测试用），
// 覆盖超时与 TLS 相关选项构建的默认传输。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient 创建传输客户端。
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
		userAgent:      defaultUserAgent,
		verifyPeer:     true,
		verifyName:     true,
		compression:    true,
		logger:         slog.Default(),
		parser:         xparse.NewEnvelopeParser(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: c.buildTransport(),
		}
	}

	m, err := newSendMetrics(c.meterProvider)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	return c, nil
}

func (c *Client) buildTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: c.connectTimeout}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     c.buildTLSConfig(),
		TLSHandshakeTimeout: c.connectTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 4,
		DisableCompression:  !c.compression,
	}
}

func (c *Client) buildTLSConfig() *tls.Config {
	if c.tlsConfig != nil {
		return c.tlsConfig.Clone()
	}
	if c.verifyPeer && c.verifyName {
		return nil
	}
	if !c.verifyPeer {
		//nolint:gosec // 显式配置开关，仅测试环境关闭
		return &tls.Config{InsecureSkipVerify: true}
	}

	// 校验证书链但跳过主机名：标准库无直接开关，
	// 关闭内建校验后在 VerifyConnection 里只验链
	//nolint:gosec
	return &tls.Config{
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			opts := x509.VerifyOptions{
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}

// Send 执行一次同步 SOAP POST。
//
// 收到 HTTP 应答时返回非 nil 的 Result（与错误并存），
// 供审计记录原始报文；网络层故障时 Result 为 nil。
func (c *Client) Send(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if req.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if len(req.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.requestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(req.Payload))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindConfiguration, "invalid endpoint", err).WithEndpoint(req.Endpoint)
	}
	httpReq.Header.Set("Content-Type", contentTypeSoap12)
	httpReq.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		terr := c.classifyNetError(err, req.Endpoint)
		c.observe(ctx, req, nil, terr, time.Since(start))
		return nil, terr
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   elapsed,
	}
	if c.captureTrace {
		result.Trace = &Trace{
			Endpoint:     req.Endpoint,
			RequestBody:  req.Payload,
			ResponseBody: body,
			StatusCode:   resp.StatusCode,
			StartedAt:    start,
			Duration:     elapsed,
		}
	}

	if readErr != nil {
		terr := c.classifyNetError(readErr, req.Endpoint)
		c.observe(ctx, req, result, terr, elapsed)
		return result, terr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := c.classifyStatus(resp.StatusCode, req.Endpoint)
		c.observe(ctx, req, result, terr, elapsed)
		return result, terr
	}

	env, perr := c.parser.Parse(body)
	if perr != nil {
		terr := &TransportError{
			Cause:    CauseMalformed,
			Endpoint: req.Endpoint,
			Err:      xmsg.Wrap(xmsg.KindSoapXML, "unparseable response", perr).WithEndpoint(req.Endpoint),
		}
		c.observe(ctx, req, result, terr, elapsed)
		return result, terr
	}
	result.Envelope = env

	if env.IsFault() {
		terr := c.classifyFault(env.Fault, req.Endpoint)
		c.observe(ctx, req, result, terr, elapsed)
		return result, terr
	}

	c.observe(ctx, req, result, nil, elapsed)
	return result, nil
}

func (c *Client) observe(ctx context.Context, req Request, result *Result, terr *TransportError, elapsed time.Duration) {
	status := "ok"
	if terr != nil {
		status = string(terr.Cause)
	}
	c.metrics.record(ctx, req.Endpoint, string(req.MessageType), status, elapsed)

	attrs := []any{
		slog.String("endpoint", req.Endpoint),
		slog.String("hotel_code", req.HotelCode),
		slog.String("message_type", string(req.MessageType)),
		slog.Duration("duration", elapsed),
	}
	if result != nil {
		attrs = append(attrs, slog.Int("status_code", result.StatusCode))
	}
	if terr != nil {
		attrs = append(attrs, slog.String("cause", string(terr.Cause)), slog.Any("error", terr.Err))
		c.logger.WarnContext(ctx, "soap send failed", attrs...)
		return
	}
	c.logger.DebugContext(ctx, "soap send ok", attrs...)
}
