//go:build e2e

// 端到端场景：真实配置文件、真实 SOAP 传输（httptest 对端）、
// 内存存储。覆盖库存直报/计算法、联动房价、熔断让位、对端鉴权
// 拒绝与接收面幂等回放。
package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/internal/outbound"
	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/audit/xsyncstatus"
	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/resilience/xbreaker"
	"github.com/omeyang/tclink/pkg/transport/xsoapclient"
)

// crsServer 充当 CRS 对端：记录收到的请求体，按 respond 应答。
type crsServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests [][]byte
	respond  func(body []byte) (status int, response string)
}

func newCRSServer(respond func(body []byte) (int, string)) *crsServer {
	s := &crsServer{respond: respond}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, body)
		respond := s.respond
		s.mu.Unlock()

		status, resp := respond(body)
		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	return s
}

func (s *crsServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *crsServer) request(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// successEnvelope 标准成功应答信封。
func successEnvelope(root string) string {
	return `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<` + root + ` xmlns="http://www.opentravel.org/OTA/2003/05" Version="1.0"><Success/></` + root + `>` +
		`</soap:Body></soap:Envelope>`
}

// authFaultEnvelope 对端 WSSE 拒绝的 Fault 信封。
func authFaultEnvelope() string {
	return `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"><SOAP-ENV:Body>` +
		`<SOAP-ENV:Fault><faultcode>SOAP-ENV:Client.AUTHENTICATION_FAILED</faultcode>` +
		`<faultstring>Authentication Error: credentials rejected</faultstring></SOAP-ENV:Fault>` +
		`</SOAP-ENV:Body></SOAP-ENV:Envelope>`
}

// gatewayConfig 生成指向 CRS 地址的完整网关配置文件。
func gatewayConfig(t *testing.T, endpoint string) string {
	t.Helper()
	yaml := fmt.Sprintf(`
endpoints:
  production: %s
retry_policy:
  max_attempts: 2
  initial_delay_seconds: 1
  max_delay_seconds: 5
  multiplier: 2
message_types:
  INVENTORY:
    enabled: true
    batch_size: 100
  RATES:
    enabled: true
    batch_size: 50
  RESERVATION:
    enabled: true
soap:
  http:
    timeout: 10
properties:
  "101":
    hotel_code: HOTEL001
    username: agent
    password: secret-password
    environment: production
    active: true
    enabled_types: [INVENTORY, RATES, RESERVATION, RESTRICTIONS, GROUP_BLOCK]
  "201":
    hotel_code: HOTEL002
    username: agent
    password: secret-password
    environment: production
    active: true
    external_system_handles_linked_rates: true
    enabled_types: [RATES]
`, endpoint)
	path := filepath.Join(t.TempDir(), "travelclick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

// gateway 出站侧的完整装配。
type gateway struct {
	cfg      *xpmsconf.Service
	orch     *outbound.Orchestrator
	queue    *outbound.MemoryQueue
	store    *xauditlog.MemoryStore
	tracker  *xsyncstatus.Tracker
	breakers *xbreaker.Registry
	crs      *crsServer
}

func newGateway(t *testing.T, respond func(body []byte) (int, string), opts ...outbound.Option) *gateway {
	t.Helper()

	crs := newCRSServer(respond)
	t.Cleanup(crs.Close)

	cfg, err := xpmsconf.NewService(gatewayConfig(t, crs.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })

	sender, err := xsoapclient.NewClient(xsoapclient.WithRequestTimeout(5 * time.Second))
	require.NoError(t, err)

	queue := outbound.NewMemoryQueue()
	store := xauditlog.NewMemoryStore()
	tracker, err := xsyncstatus.NewTracker(xsyncstatus.NewMemoryStore())
	require.NoError(t, err)
	breakers := xbreaker.NewRegistry()

	opts = append([]outbound.Option{
		outbound.WithTracker(tracker),
		outbound.WithBreakerRegistry(breakers),
	}, opts...)
	orch, err := outbound.NewOrchestrator(cfg, queue, sender, store, opts...)
	require.NoError(t, err)

	return &gateway{
		cfg:      cfg,
		orch:     orch,
		queue:    queue,
		store:    store,
		tracker:  tracker,
		breakers: breakers,
		crs:      crs,
	}
}

// start 启动消费协程，测试结束时取消并等待退出。
func (g *gateway) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.orch.Run(ctx, 2) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("workers did not stop")
		}
	})
}

// waitEntries 等待处于目标状态的审计记录达到期望条数。
func waitEntries(t *testing.T, store *xauditlog.MemoryStore, status xauditlog.Status, n int) []*xauditlog.Entry {
	t.Helper()
	var entries []*xauditlog.Entry
	require.Eventually(t, func() bool {
		var err error
		entries, err = store.ListByStatus(context.Background(), status, n+1)
		return err == nil && len(entries) == n
	}, 10*time.Second, 20*time.Millisecond)
	return entries
}
