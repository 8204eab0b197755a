package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/htng/xmlns"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xmsgid"
	"github.com/omeyang/tclink/pkg/htng/xparse"
	"github.com/omeyang/tclink/pkg/htng/xsoap"
	"github.com/omeyang/tclink/pkg/htng/xvalid"
	"github.com/omeyang/tclink/pkg/resilience/xbreaker"
)

const (
	// SoapPath 入站 SOAP 接收路径。
	SoapPath = "/api/travelclick/soap"

	// HealthPath 健康检查路径。
	HealthPath = "/api/travelclick/health"

	// maxBodyBytes 单次请求报文上限。
	maxBodyBytes = 16 << 20

	contentTypeSoap = "application/soap+xml; charset=utf-8"
	contentTypeXML  = "text/xml; charset=utf-8"
)

// Server 入站 SOAP 接收面。
type Server struct {
	auth       *Authenticator
	store      xauditlog.Store
	dispatcher *Dispatcher

	parser     *xparse.EnvelopeParser
	resvParser *xparse.ReservationParser
	validator  *xvalid.XMLValidator
	msgid      *xmsgid.Generator

	breakers *xbreaker.Registry
	wsdl     []byte
	version  string
	logger   *slog.Logger
	now      func() time.Time
}

// ServerOption 服务配置选项。
type ServerOption func(*Server)

// WithBreakerRegistry 接入出站熔断器注册表，健康检查随之输出对端状态。
func WithBreakerRegistry(r *xbreaker.Registry) ServerOption {
	return func(s *Server) { s.breakers = r }
}

// WithWSDL 设置 WSDL 文档内容，GET <SoapPath>/wsdl 时返回。
func WithWSDL(doc []byte) ServerOption {
	return func(s *Server) { s.wsdl = doc }
}

// WithServerVersion 设置健康检查输出的构建版本。默认 "dev"。
func WithServerVersion(v string) ServerOption {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithServerLogger 设置日志器。默认 slog.Default。
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerClock 替换时钟（测试用）。
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer 创建接收面。
func NewServer(cfg ConfigSource, store xauditlog.Store, dispatcher *Dispatcher, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	auth, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		auth:       auth,
		store:      store,
		dispatcher: dispatcher,
		parser:     xparse.NewEnvelopeParser(),
		resvParser: xparse.NewReservationParser(),
		validator:  xvalid.NewXMLValidator(),
		msgid:      xmsgid.New(),
		version:    "dev",
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router 组装 HTTP 路由。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "SOAPAction"},
	}))

	r.Post(SoapPath, s.handleSoap)
	r.Get(SoapPath+"/wsdl", s.handleWSDL)
	r.Get(HealthPath, s.handleHealth)
	return r
}

// handleSoap 入站主管道。
func (s *Server) handleSoap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "unreadable request body")
		return
	}
	if len(raw) > maxBodyBytes {
		s.writeFault(w, http.StatusRequestEntityTooLarge, xsoap.FaultClient, "request body too large")
		return
	}

	env, err := s.parser.Parse(raw)
	if err != nil {
		s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "malformed soap envelope: "+errText(err))
		return
	}
	if env.Fault != nil {
		s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "fault envelopes are not accepted")
		return
	}

	propertyID, prop, err := s.authenticate(ctx, w, env)
	if err != nil {
		return
	}

	mt := env.MessageType()
	if mt == xmsg.TypeUnknown || mt == xmsg.TypeResponse {
		s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient,
			fmt.Sprintf("unsupported message root %q", env.Body.Data))
		return
	}

	body := env.BodyXML()
	if verr := s.validator.Validate(body, mt); verr != nil {
		s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "validation failed: "+errText(verr))
		return
	}

	msg := &Message{
		MessageID:  env.Header.MessageID,
		EchoToken:  env.Body.SelectAttr("EchoToken"),
		PropertyID: propertyID,
		HotelCode:  prop.HotelCode,
		Type:       mt,
		Body:       body,
		ReceivedAt: s.now(),
	}

	confirmation := ""
	if mt == xmsg.TypeReservation {
		rm, perr := s.resvParser.ParseNode(env.Body)
		if perr != nil {
			s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "invalid reservation: "+errText(perr))
			return
		}
		if verr := rm.Reservation.Validate(); verr != nil {
			s.writeFault(w, http.StatusBadRequest, xsoap.FaultClient, "invalid reservation: "+errText(verr))
			return
		}
		msg.Reservation = rm.Reservation
		confirmation = rm.Reservation.ConfirmationNumber
	}

	// 幂等：相同报文摘要 + 确认号，且上一次未以失败收场时，回放当时的应答
	hash := xauditlog.PayloadHash(raw)
	if prev, ferr := s.store.FindByHash(ctx, hash, confirmation); ferr == nil {
		if replayable(prev) {
			s.logger.Info("inbound: duplicate request, replaying stored ack",
				slog.String("message_id", prev.MessageID),
				slog.String("property_id", propertyID))
			s.writeRaw(w, http.StatusOK, []byte(prev.ResponseXML))
			return
		}
	} else if !errors.Is(ferr, xauditlog.ErrNotFound) {
		s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "audit store unavailable")
		return
	}

	if msg.MessageID == "" {
		gen, gerr := s.msgid.Unique(prop.HotelCode, mt)
		if gerr != nil {
			s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "message id generation failed")
			return
		}
		msg.MessageID = gen
	}

	ack, err := s.buildAck(prop.HotelCode, mt, msg)
	if err != nil {
		s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "acknowledgement synthesis failed")
		return
	}

	entry := xauditlog.NewEntry(msg.MessageID, xmsg.DirectionInbound, mt, propertyID, prop.HotelCode, raw)
	entry.ConfirmationNumber = confirmation
	entry.ResponseXML = string(ack)

	if ierr := s.store.Insert(ctx, entry); ierr != nil {
		if !errors.Is(ierr, xauditlog.ErrDuplicateMessageID) {
			s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "audit store unavailable")
			return
		}
		// 同一 message-id、不同报文：另起网关标识，留线索指回原记录
		gen, gerr := s.msgid.Unique(prop.HotelCode, mt)
		if gerr != nil {
			s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "message id generation failed")
			return
		}
		entry.ParentMessageID = msg.MessageID
		msg.MessageID = gen
		entry.ID, entry.MessageID = gen, gen
		if ierr := s.store.Insert(ctx, entry); ierr != nil {
			s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "audit store unavailable")
			return
		}
	}
	msg.AuditID = entry.ID

	if serr := s.dispatcher.Submit(ctx, msg); serr != nil {
		s.abandonEntry(ctx, entry, serr)
		s.writeFault(w, http.StatusServiceUnavailable, xsoap.FaultServer, "gateway busy, retry later")
		return
	}

	s.logger.Info("inbound: message accepted",
		slog.String("message_id", msg.MessageID),
		slog.String("property_id", propertyID),
		slog.String("message_type", string(mt)))
	s.writeRaw(w, http.StatusOK, ack)
}

// authenticate 鉴权；失败时直接写出 Fault 并返回非 nil 错误。
func (s *Server) authenticate(ctx context.Context, w http.ResponseWriter, env *xparse.Envelope) (string, *xpmsconf.PropertyConfig, error) {
	propertyID, prop, err := s.auth.Authenticate(ctx, env.Header)
	if err != nil {
		var aerr *AuthError
		if errors.As(err, &aerr) {
			s.writeFault(w, http.StatusUnauthorized, xsoap.FaultClient, "Authentication Error: "+aerr.Reason)
			return "", nil, err
		}
		s.writeFault(w, http.StatusInternalServerError, xsoap.FaultServer, "configuration unavailable")
		return "", nil, err
	}
	return propertyID, prop, nil
}

// buildAck 合成确认信封：<rootRS Version EchoToken TimeStamp><Success/></rootRS>，
// wsa:RelatesTo 指回对端 message-id。
func (s *Server) buildAck(hotelCode string, mt xmsg.MessageType, msg *Message) ([]byte, error) {
	schema, err := xmlns.SchemaFor(mt)
	if err != nil {
		return nil, err
	}

	root := etree.NewElement(strings.TrimSuffix(schema.Root, "RQ") + "RS")
	root.CreateAttr("xmlns", xmlns.OTA)
	root.CreateAttr("TimeStamp", s.now().Format("2006-01-02T15:04:05"))
	if msg.EchoToken != "" {
		root.CreateAttr("EchoToken", msg.EchoToken)
	}
	root.CreateAttr("Version", schema.Version)
	root.CreateElement("Success")

	ackID, err := s.msgid.Unique(hotelCode, mt)
	if err != nil {
		return nil, err
	}
	return xsoap.WrapAck(ackID, msg.MessageID, root)
}

// abandonEntry 分发失败时收口审计记录，让对端重投时走新记录。
func (s *Server) abandonEntry(ctx context.Context, entry *xauditlog.Entry, cause error) {
	serr := xmsg.Wrap(xmsg.KindConnection, "dispatch rejected", cause)
	entry.RecordError(serr)
	if terr := entry.Transition(xauditlog.StatusCancelled); terr != nil {
		return
	}
	if uerr := s.store.Update(context.WithoutCancel(ctx), entry); uerr != nil {
		s.logger.Warn("inbound: abandon update failed", slog.Any("error", uerr))
	}
}

// replayable 判断既有记录是否可直接回放应答。
// 失败或取消收场的记录不回放，让重投走新记录。
func replayable(e *xauditlog.Entry) bool {
	switch e.Status {
	case xauditlog.StatusFailed, xauditlog.StatusFailedPermanent, xauditlog.StatusCancelled:
		return false
	default:
		return e.ResponseXML != ""
	}
}

// handleWSDL 输出 WSDL 文档。
func (s *Server) handleWSDL(w http.ResponseWriter, _ *http.Request) {
	if len(s.wsdl) == 0 {
		http.Error(w, "wsdl not configured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.wsdl)
}

// healthResponse 健康检查输出。
type healthResponse struct {
	Status          string            `json:"status"`
	Version         string            `json:"version"`
	Timestamp       time.Time         `json:"timestamp"`
	DispatchBacklog int               `json:"dispatch_backlog"`
	Breakers        []xbreaker.Status `json:"breakers,omitempty"`
}

// handleHealth 输出网关健康状态与对端熔断快照。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:          "ok",
		Version:         s.version,
		Timestamp:       s.now(),
		DispatchBacklog: s.dispatcher.Backlog(),
	}
	if s.breakers != nil {
		resp.Breakers = s.breakers.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeFault 合成 SOAP 1.1 Fault 应答。
func (s *Server) writeFault(w http.ResponseWriter, status int, code xsoap.FaultCode, reason string) {
	out, err := xsoap.NewFault(xsoap.Fault{Code: code, String: reason})
	if err != nil {
		http.Error(w, reason, status)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// writeRaw 输出已合成的应答信封。
func (s *Server) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeSoap)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errText 取错误展示文案；xmsg.Error 用其 Message 避免内部链路外泄。
func errText(err error) string {
	var serr *xmsg.Error
	if errors.As(err, &serr) {
		return serr.Message
	}
	return err.Error()
}
