package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/htng/xbuild"
	"github.com/omeyang/tclink/pkg/htng/xmlns"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xsoap"
)

type testGateway struct {
	server     *Server
	store      *xauditlog.MemoryStore
	handler    *recordingHandler
	dispatcher *Dispatcher
	router     http.Handler
}

func newTestGateway(t *testing.T, opts ...ServerOption) *testGateway {
	t.Helper()
	store := xauditlog.NewMemoryStore()
	handler := &recordingHandler{}
	d, err := NewDispatcher(handler, store, WithWorkers(2))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })

	s, err := NewServer(newAuthConfig(), store, d, opts...)
	require.NoError(t, err)
	return &testGateway{server: s, store: store, handler: handler, dispatcher: d, router: s.Router()}
}

func (g *testGateway) post(t *testing.T, envelope []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, SoapPath, bytes.NewReader(envelope))
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

// soapRequest 合成对端请求信封。
func soapRequest(t *testing.T, messageID, password string, body *etree.Element) []byte {
	t.Helper()
	header, err := xsoap.NewHeaderBuilder().Build(xsoap.HeaderInput{
		MessageID: messageID,
		Endpoint:  "https://gateway.example.com" + SoapPath,
		HotelCode: "HOTEL1",
		Username:  "agent",
		Password:  password,
	})
	require.NoError(t, err)
	raw, err := xsoap.Wrap(header, body)
	require.NoError(t, err)
	return raw
}

func testReservation() *xmsg.Reservation {
	arrival := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	return &xmsg.Reservation{
		ConfirmationNumber: "CONF-2001",
		HotelCode:          "HOTEL1",
		Transaction:        xmsg.TransactionNew,
		Guests:             []xmsg.Guest{{FirstName: "Mei", LastName: "Lin", Primary: true}},
		RoomStays: []xmsg.RoomStay{{
			RoomTypeCode: "KING",
			RatePlanCode: "BAR",
			Arrival:      arrival,
			Departure:    arrival.AddDate(0, 0, 3),
			NightlyRate:  960,
			Currency:     "CNY",
			Occupancy:    xmsg.Occupancy{Adults: 2},
		}},
	}
}

func reservationBody(t *testing.T) *etree.Element {
	t.Helper()
	body, err := xbuild.NewReservationBuilder().Build(xbuild.ReservationInput{
		EchoToken:   "ET-RES-1",
		Reservation: testReservation(),
	})
	require.NoError(t, err)
	return body
}

func inventoryBody(t *testing.T, count int) *etree.Element {
	t.Helper()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	item, err := xmsg.NewInventoryItem("HOTEL1", "KING", start, start.AddDate(0, 0, 7),
		map[xmsg.CountType]int{xmsg.CountAvailable: count})
	require.NoError(t, err)
	body, err := xbuild.NewInventoryBuilder().Build(xbuild.InventoryInput{
		HotelCode: "HOTEL1",
		EchoToken: "ET-INV-1",
		Items:     []*xmsg.InventoryItem{item},
	})
	require.NoError(t, err)
	return body
}

func TestServerAcceptsReservation(t *testing.T) {
	g := newTestGateway(t)
	rec := g.post(t, soapRequest(t, "CRS-MSG-1", "secret-password", reservationBody(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "OTA_HotelResNotifRS")
	assert.Contains(t, out, "<Success/>")
	assert.Contains(t, out, `EchoToken="ET-RES-1"`)
	assert.Contains(t, out, "<wsa:RelatesTo>CRS-MSG-1</wsa:RelatesTo>")

	ctx := context.Background()
	entry, err := g.store.FindByMessageID(ctx, "CRS-MSG-1")
	require.NoError(t, err)
	assert.Equal(t, xmsg.DirectionInbound, entry.Direction)
	assert.Equal(t, xmsg.TypeReservation, entry.MessageType)
	assert.Equal(t, "101", entry.PropertyID)
	assert.Equal(t, "CONF-2001", entry.ConfirmationNumber)
	assert.Equal(t, out, entry.ResponseXML)

	require.Eventually(t, func() bool {
		e, err := g.store.FindByID(ctx, entry.ID)
		return err == nil && e.Status == xauditlog.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, g.handler.count())
	msg := g.handler.messages[0]
	assert.Equal(t, "CRS-MSG-1", msg.MessageID)
	require.NotNil(t, msg.Reservation)
	assert.Equal(t, "CONF-2001", msg.Reservation.ConfirmationNumber)
}

func TestServerAcceptsInventory(t *testing.T) {
	g := newTestGateway(t)
	rec := g.post(t, soapRequest(t, "CRS-MSG-INV", "secret-password", inventoryBody(t, 5)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTA_HotelInvCountNotifRS")

	require.Eventually(t, func() bool { return g.handler.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, xmsg.TypeInventory, g.handler.messages[0].Type)
	assert.Nil(t, g.handler.messages[0].Reservation)
}

func TestServerAuthFault(t *testing.T) {
	g := newTestGateway(t)
	rec := g.post(t, soapRequest(t, "CRS-MSG-2", "wrong-password", reservationBody(t)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "Authentication Error: invalid credentials")
	assert.Contains(t, out, "Client")
	assert.Equal(t, 0, g.handler.count())
}

func TestServerRejectsMalformedEnvelope(t *testing.T) {
	g := newTestGateway(t)
	rec := g.post(t, []byte("this is not xml"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed soap envelope")
}

func TestServerRejectsUnknownRoot(t *testing.T) {
	g := newTestGateway(t)
	body := etree.NewElement("OTA_PingRQ")
	body.CreateAttr("xmlns", xmlns.OTA)

	rec := g.post(t, soapRequest(t, "CRS-MSG-3", "secret-password", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported message root")
}

func TestServerRejectsResponseRoot(t *testing.T) {
	g := newTestGateway(t)
	body := etree.NewElement("OTA_HotelResNotifRS")
	body.CreateAttr("xmlns", xmlns.OTA)

	rec := g.post(t, soapRequest(t, "CRS-MSG-4", "secret-password", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerValidationFault(t *testing.T) {
	g := newTestGateway(t)
	// 缺少 TimeStamp/EchoToken/Version 与 Inventories
	body := etree.NewElement("OTA_HotelInvCountNotifRQ")
	body.CreateAttr("xmlns", xmlns.OTA)

	rec := g.post(t, soapRequest(t, "CRS-MSG-5", "secret-password", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed")
	assert.Equal(t, 0, g.handler.count())
}

func TestServerInvalidReservation(t *testing.T) {
	g := newTestGateway(t)
	body := reservationBody(t)
	// Reinstate 不在支持的事务集合内
	body.RemoveAttr("ResStatus")
	body.CreateAttr("ResStatus", "Reinstate")

	rec := g.post(t, soapRequest(t, "CRS-MSG-6", "secret-password", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid reservation")
}

func TestServerReplaysDuplicate(t *testing.T) {
	g := newTestGateway(t)
	envelope := soapRequest(t, "CRS-MSG-7", "secret-password", reservationBody(t))

	first := g.post(t, envelope)
	require.Equal(t, http.StatusOK, first.Code)

	second := g.post(t, envelope)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	// 同一请求只分发一次
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, g.handler.count())
}

func TestServerDuplicateMessageIDNewPayload(t *testing.T) {
	g := newTestGateway(t)

	first := g.post(t, soapRequest(t, "CRS-MSG-8", "secret-password", inventoryBody(t, 5)))
	require.Equal(t, http.StatusOK, first.Code)

	// 对端复用 message-id 投递不同报文：另起网关标识并留线索
	second := g.post(t, soapRequest(t, "CRS-MSG-8", "secret-password", inventoryBody(t, 9)))
	require.Equal(t, http.StatusOK, second.Code)

	thread, err := g.store.Thread(context.Background(), "CRS-MSG-8")
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "CRS-MSG-8", thread[0].ParentMessageID)

	require.Eventually(t, func() bool { return g.handler.count() == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestServerBackpressureFault(t *testing.T) {
	store := xauditlog.NewMemoryStore()
	handler := &recordingHandler{}
	// 不启动 worker，容量 1，第二条触发背压
	d, err := NewDispatcher(handler, store, WithQueueSize(1))
	require.NoError(t, err)

	s, err := NewServer(newAuthConfig(), store, d)
	require.NoError(t, err)
	g := &testGateway{server: s, store: store, handler: handler, dispatcher: d, router: s.Router()}

	first := g.post(t, soapRequest(t, "CRS-MSG-9", "secret-password", inventoryBody(t, 5)))
	require.Equal(t, http.StatusOK, first.Code)

	second := g.post(t, soapRequest(t, "CRS-MSG-10", "secret-password", inventoryBody(t, 9)))
	require.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Contains(t, second.Body.String(), "gateway busy")

	entry, err := store.FindByMessageID(context.Background(), "CRS-MSG-10")
	require.NoError(t, err)
	assert.Equal(t, xauditlog.StatusCancelled, entry.Status)
}

func TestServerHealth(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "dev", resp["version"])
	assert.NotEmpty(t, resp["timestamp"])
	assert.EqualValues(t, 0, resp["dispatch_backlog"])
}

func TestServerWSDL(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		g := newTestGateway(t)
		req := httptest.NewRequest(http.MethodGet, SoapPath+"/wsdl", nil)
		rec := httptest.NewRecorder()
		g.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("configured", func(t *testing.T) {
		doc := []byte(`<definitions name="HTNG2011BService"/>`)
		g := newTestGateway(t, WithWSDL(doc))
		req := httptest.NewRequest(http.MethodGet, SoapPath+"/wsdl", nil)
		rec := httptest.NewRecorder()
		g.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, doc, rec.Body.Bytes())
	})
}

func TestNewServerNilDeps(t *testing.T) {
	store := xauditlog.NewMemoryStore()
	d, err := NewDispatcher(&recordingHandler{}, store)
	require.NoError(t, err)

	_, err = NewServer(nil, store, d)
	assert.ErrorIs(t, err, ErrNilConfig)
	_, err = NewServer(newAuthConfig(), nil, d)
	assert.ErrorIs(t, err, ErrNilStore)
	_, err = NewServer(newAuthConfig(), store, nil)
	assert.ErrorIs(t, err, ErrNilDispatcher)
}
