package outbound

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/htng/xbuild"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xparse"
	"github.com/omeyang/tclink/pkg/htng/xsoap"
	"github.com/omeyang/tclink/pkg/resilience/xbreaker"
	"github.com/omeyang/tclink/pkg/resilience/xretry"
	"github.com/omeyang/tclink/pkg/transport/xsoapclient"
)

// 任务处理结果标签（指标与日志共用）。
const (
	outcomeCompleted     = "completed"
	outcomeCompletedWarn = "completed_with_warnings"
	outcomeRetry         = "retry"
	outcomeFailed        = "failed_permanent"
	outcomeCancelled     = "cancelled"
	outcomeCircuitOpen   = "circuit_open"
	outcomeRateLimited   = "rate_limited"
	outcomeDeferred      = "deferred"
	outcomeDropped       = "dropped"
)

// entryUpdateAttempts 审计记录乐观更新的重读次数。
const entryUpdateAttempts = 3

// errCancelledGate 任务已被取消的内部信号。
var errCancelledGate = errors.New("outbound: job cancelled")

// process 推进单个任务的完整状态机，返回结果标签。
func (o *Orchestrator) process(ctx context.Context, j *Job) string {
	log := o.logger.With(
		slog.String("job_id", j.ID),
		slog.String("property_id", j.PropertyID),
		slog.String("message_type", string(j.Type)),
	)

	if err := j.Validate(); err != nil {
		log.Error("malformed job dropped", slog.Any("error", err))
		return outcomeDropped
	}

	prop, err := o.cfg.Get(ctx, j.PropertyID)
	if err != nil {
		return o.failPermanent(ctx, j, log,
			xmsg.Wrap(xmsg.KindConfiguration, "resolve property config", err))
	}
	if !prop.Active || !prop.Enabled(j.Type) {
		return o.failPermanent(ctx, j, log,
			xmsg.NewError(xmsg.KindConfiguration, "property inactive or message type disabled").
				WithHotel(prop.HotelCode))
	}

	// 键对栅栏：同一 (property, type) 串行
	release, err := o.fence.TryAcquire(ctx, j.PropertyID, j.Type)
	if err != nil {
		log.Warn("fence unavailable", slog.Any("error", err))
		o.requeueDelayed(ctx, j, infraRetryDelay, log)
		return outcomeDeferred
	}
	if release == nil {
		// 被占：回到队头保持顺序，稍候再试避免空转
		if err := o.queue.RequeueFront(ctx, j); err != nil {
			log.Error("requeue front failed", slog.Any("error", err))
		}
		o.pause(ctx, pairBusyBackoff)
		return outcomeDeferred
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("fence release failed", slog.Any("error", err))
		}
	}()

	// 对端并发闸门
	sem := o.endpointSem(ctx, prop.Endpoint)
	if err := sem.Acquire(ctx, 1); err != nil {
		o.requeueDelayed(ctx, j, infraRetryDelay, log)
		return outcomeDeferred
	}
	defer sem.Release(1)

	// 对端限流：限流器故障时放行，可用性优先
	allowed, retryAfter, err := o.limiter.Allow(ctx, prop.Endpoint)
	if err != nil {
		log.Warn("rate limiter unavailable, failing open", slog.Any("error", err))
		allowed = true
	}
	if !allowed {
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		o.requeueDelayed(ctx, j, retryAfter, log)
		return outcomeRateLimited
	}

	// 审计闸口：取消检查 + 进入 PROCESSING
	if outcome, ok := o.gateEntry(ctx, j, log); !ok {
		return outcome
	}

	if o.tracker != nil {
		if err := o.tracker.RecordStart(ctx, j.PropertyID, j.Type, j.RecordCount()); err != nil {
			log.Warn("sync status update failed", slog.Any("error", err))
		}
	}

	return o.execute(ctx, j, prop, log)
}

// gateEntry 加载审计记录，尊重取消标记，并流转到 PROCESSING。
// 返回 (outcome, false) 表示任务到此为止。
func (o *Orchestrator) gateEntry(ctx context.Context, j *Job, log *slog.Logger) (string, bool) {
	_, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
		if e.Status == xauditlog.StatusCancelled {
			return errCancelledGate
		}
		return e.Transition(xauditlog.StatusProcessing)
	})
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, errCancelledGate):
		log.Info("job cancelled before send")
		return outcomeCancelled, false
	case errors.Is(err, xauditlog.ErrInvalidTransition):
		// 已终态：重复投递，丢弃
		log.Warn("job already settled, dropping duplicate delivery")
		return outcomeDropped, false
	case errors.Is(err, xauditlog.ErrNotFound):
		log.Error("audit entry missing", slog.String("audit_id", j.AuditID))
		return outcomeDropped, false
	default:
		log.Warn("audit store unavailable", slog.Any("error", err))
		o.requeueDelayed(ctx, j, infraRetryDelay, log)
		return outcomeDeferred, false
	}
}

// execute 执行 VALIDATE 之后的阶段。调用时任务已处于 PROCESSING。
func (o *Orchestrator) execute(ctx context.Context, j *Job, prop *xpmsconf.PropertyConfig, log *slog.Logger) string {
	global, err := o.cfg.GetGlobal(ctx)
	if err != nil {
		global = nil
	}

	// VALIDATE：构建器在序列化前执行全部业务规则校验
	body, err := o.buildBody(j, prop)
	if err != nil {
		return o.failPermanent(ctx, j, log, toMsgError(err, xmsg.KindValidation))
	}

	// CIRCUIT_CHECK：熔断开启时按剩余恢复时间延迟，不消耗重试预算
	br := o.breakers.Get(prop.Endpoint)
	if br.State() == xbreaker.StateOpen {
		return o.deferCircuitOpen(ctx, j, br, log)
	}

	// BUILD_HEADERS
	header, err := o.headers.Build(xsoap.HeaderInput{
		MessageID: j.MessageID,
		Endpoint:  prop.Endpoint,
		HotelCode: prop.HotelCode,
		Username:  prop.Username,
		Password:  prop.Password,
	})
	if err != nil {
		return o.failPermanent(ctx, j, log, toMsgError(err, xmsg.KindSoapXML))
	}
	envelope, err := xsoap.Wrap(header, body)
	if err != nil {
		return o.failPermanent(ctx, j, log, toMsgError(err, xmsg.KindSoapXML))
	}
	if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
		e.RequestXML = string(envelope)
		e.XMLSHA256 = xauditlog.PayloadHash(envelope)
		return nil
	}); err != nil {
		log.Warn("persist request xml failed", slog.Any("error", err))
	}

	// SEND：单次网络往返，经熔断器包裹
	timeout := prop.RequestTimeout
	if global != nil {
		if s := global.MessageType(j.Type).TimeoutSeconds; s > 0 {
			timeout = time.Duration(s) * time.Second
		}
	}
	var res *xsoapclient.Result
	sendErr := br.Do(ctx, func() error {
		r, e := o.sender.Send(ctx, xsoapclient.Request{
			Endpoint:    prop.Endpoint,
			HotelCode:   prop.HotelCode,
			MessageType: j.Type,
			Payload:     envelope,
			Timeout:     timeout,
		})
		res = r
		return e
	})
	if res != nil && len(res.Body) > 0 {
		if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
			e.ResponseXML = string(res.Body)
			return nil
		}); err != nil {
			log.Warn("persist response xml failed", slog.Any("error", err))
		}
	}
	if sendErr != nil {
		if xbreaker.IsOpen(sendErr) || xbreaker.IsTooManyRequests(sendErr) {
			return o.deferCircuitOpen(ctx, j, br, log)
		}
		return o.settleFailure(ctx, j, prop, log, toMsgError(sendErr, xmsg.KindUnknown))
	}

	// PARSE_RESPONSE
	if res == nil || res.Envelope == nil {
		return o.settleFailure(ctx, j, prop, log,
			xmsg.NewError(xmsg.KindSoapXML, "response envelope not parseable"))
	}
	resp, perr := o.responses.Parse(res.Envelope.BodyXML())
	if perr != nil {
		return o.settleFailure(ctx, j, prop, log, toMsgError(perr, xmsg.KindSoapXML))
	}
	if rerr := resp.Err(); rerr != nil {
		return o.settleFailure(ctx, j, prop, log, toMsgError(rerr, xmsg.KindBusinessLogic))
	}

	// UPDATE_LOG：成功终态
	if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
		return e.Transition(xauditlog.StatusCompleted)
	}); err != nil {
		log.Warn("complete transition failed", slog.Any("error", err))
	}
	if o.tracker != nil {
		if err := o.tracker.RecordSuccess(ctx, j.PropertyID, j.Type, j.RecordCount()); err != nil {
			log.Warn("sync status update failed", slog.Any("error", err))
		}
	}

	// CHAIN：预订完成联动库存
	if j.Type == xmsg.TypeReservation {
		o.maybeChainInventory(ctx, j, global, log)
	}

	if len(resp.Warnings) > 0 {
		o.recordWarnings(ctx, j, resp.Warnings, log)
		log.Info("job completed with warnings", slog.Int("warnings", len(resp.Warnings)))
		return outcomeCompletedWarn
	}
	log.Info("job completed", slog.Int("attempt", j.Attempt+1))
	return outcomeCompleted
}

// buildBody 按消息类型组装 OTA Body。
func (o *Orchestrator) buildBody(j *Job, prop *xpmsconf.PropertyConfig) (*etree.Element, error) {
	switch j.Type {
	case xmsg.TypeInventory:
		return o.inventory.Build(xbuild.InventoryInput{
			HotelCode: prop.HotelCode,
			EchoToken: j.MessageID,
			Items:     j.Inventory.Items,
			Overlay:   j.Inventory.Overlay,
		})
	case xmsg.TypeRates:
		return o.rates.Build(xbuild.RateInput{
			HotelCode:             prop.HotelCode,
			EchoToken:             j.MessageID,
			Operation:             j.Rates.Operation,
			Plans:                 j.Rates.Plans,
			ExternalHandlesLinked: prop.ExternalLinkedRates,
		})
	case xmsg.TypeReservation:
		return o.resv.Build(xbuild.ReservationInput{
			EchoToken:   j.MessageID,
			Reservation: j.Reservation.Reservation,
		})
	case xmsg.TypeRestrictions:
		return o.restr.Build(xbuild.RestrictionInput{
			HotelCode:    prop.HotelCode,
			EchoToken:    j.MessageID,
			Restrictions: j.Restrictions.Restrictions,
		})
	case xmsg.TypeGroupBlock:
		return o.grpBlock.Build(xbuild.GroupBlockInput{
			EchoToken: j.MessageID,
			Blocks:    j.GroupBlock.Blocks,
		})
	default:
		return nil, ErrMissingPayload
	}
}

// settleFailure 消耗一次发送尝试并决定重试或终态失败。
func (o *Orchestrator) settleFailure(ctx context.Context, j *Job, prop *xpmsconf.PropertyConfig, log *slog.Logger, serr *xmsg.Error) string {
	j.Attempt++
	maxAttempts := prop.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	// 分类上限收紧预算：UNKNOWN 只探测性重试一次
	if limit := serr.Kind.MaxRetries(); limit > 0 && maxAttempts > limit+1 {
		maxAttempts = limit + 1
	}

	if serr.Retryable() && j.Attempt < maxAttempts {
		delay := o.backoffFor(prop).NextDelay(j.Attempt)
		if floor := serr.Kind.SuggestedDelay(); delay < floor {
			delay = floor
		}
		if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
			e.RecordError(serr)
			e.RetryCount++
			return e.Transition(xauditlog.StatusRetryPending)
		}); err != nil {
			log.Warn("retry transition failed", slog.Any("error", err))
		}
		if o.tracker != nil {
			if err := o.tracker.RecordFailure(ctx, j.PropertyID, j.Type, serr, delay); err != nil {
				log.Warn("sync status update failed", slog.Any("error", err))
			}
		}
		if err := o.queue.EnqueueDelayed(ctx, j, delay); err != nil {
			log.Error("requeue for retry failed", slog.Any("error", err))
		}
		log.Warn("job deferred for retry",
			slog.Int("attempt", j.Attempt),
			slog.Duration("delay", delay),
			slog.String("kind", string(serr.Kind)),
		)
		return outcomeRetry
	}

	return o.failPermanent(ctx, j, log, serr)
}

// failPermanent 终态失败：审计流转、错误明细、同步聚合。
func (o *Orchestrator) failPermanent(ctx context.Context, j *Job, log *slog.Logger, serr *xmsg.Error) string {
	if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
		e.RecordError(serr)
		return advanceTo(e, xauditlog.StatusFailedPermanent)
	}); err != nil {
		log.Error("permanent failure transition failed", slog.Any("error", err))
	}

	el := xauditlog.NewErrorLog(j.AuditID, "outbound "+strings.ToLower(string(j.Type))+" failed", serr, map[string]any{
		"job_id":   j.ID,
		"batch_id": j.BatchID,
		"attempt":  j.Attempt,
	})
	if err := o.audit.InsertError(ctx, el); err != nil {
		log.Warn("error log insert failed", slog.Any("error", err))
	}

	if o.tracker != nil {
		if err := o.tracker.RecordFailure(ctx, j.PropertyID, j.Type, serr, 0); err != nil {
			log.Warn("sync status update failed", slog.Any("error", err))
		}
	}
	log.Error("job failed permanently",
		slog.String("kind", string(serr.Kind)),
		slog.Int("attempt", j.Attempt),
		slog.Any("error", serr),
	)
	return outcomeFailed
}

// deferCircuitOpen 熔断开启：按剩余恢复时间延迟重入队，不消耗重试预算。
func (o *Orchestrator) deferCircuitOpen(ctx context.Context, j *Job, br *xbreaker.Breaker, log *slog.Logger) string {
	delay := br.RemainingOpen()
	if delay <= 0 {
		delay = time.Second
	}
	if _, err := o.updateEntry(ctx, j.AuditID, func(e *xauditlog.Entry) error {
		return e.Transition(xauditlog.StatusRetryPending)
	}); err != nil {
		log.Warn("retry transition failed", slog.Any("error", err))
	}
	if err := o.queue.EnqueueDelayed(ctx, j, delay); err != nil {
		log.Error("requeue on open circuit failed", slog.Any("error", err))
	}
	log.Warn("circuit open, job deferred",
		slog.String("endpoint", br.Endpoint()),
		slog.Duration("delay", delay),
	)
	return outcomeCircuitOpen
}

// maybeChainInventory 预订完成后联动一条库存更新任务。
// 需要全局开关开启且库存数据源已配置。
func (o *Orchestrator) maybeChainInventory(ctx context.Context, j *Job, global *xpmsconf.GlobalConfig, log *slog.Logger) {
	if global == nil || !global.MessageType(xmsg.TypeInventory).AutoSendInventoryUpdates {
		return
	}
	if o.invProvider == nil {
		log.Debug("inventory chaining enabled but no provider configured")
		return
	}

	r := j.Reservation.Reservation
	seen := make(map[string]struct{}, len(r.RoomStays))
	roomTypes := make([]string, 0, len(r.RoomStays))
	for _, stay := range r.RoomStays {
		if _, ok := seen[stay.RoomTypeCode]; ok {
			continue
		}
		seen[stay.RoomTypeCode] = struct{}{}
		roomTypes = append(roomTypes, stay.RoomTypeCode)
	}

	items, err := o.invProvider(ctx, j.PropertyID, roomTypes)
	if err != nil {
		log.Warn("inventory provider failed, chain skipped", slog.Any("error", err))
		return
	}
	if len(items) == 0 {
		return
	}
	if _, err := o.SubmitInventory(ctx, j.PropertyID, items, WithParentMessage(j.MessageID)); err != nil {
		log.Warn("chained inventory submit failed", slog.Any("error", err))
		return
	}
	log.Info("chained inventory update submitted", slog.Int("room_types", len(roomTypes)))
}

// recordWarnings 把对端警告落为一条错误明细，任务保持成功终态。
func (o *Orchestrator) recordWarnings(ctx context.Context, j *Job, warnings []xparse.Condition, log *slog.Logger) {
	texts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		t := w.ShortText
		if t == "" {
			t = w.Message
		}
		texts = append(texts, t)
	}
	werr := xmsg.NewError(xmsg.KindBusinessLogic, "completed with remote warnings").
		WithWarnings(texts...).
		OverrideRetryable(false)
	el := xauditlog.NewErrorLog(j.AuditID, "remote warnings", werr, map[string]any{
		"job_id":   j.ID,
		"warnings": texts,
	})
	if err := o.audit.InsertError(ctx, el); err != nil {
		log.Warn("warning log insert failed", slog.Any("error", err))
	}
}

// requeueDelayed 基础设施瞬态故障的延迟重入队。
func (o *Orchestrator) requeueDelayed(ctx context.Context, j *Job, delay time.Duration, log *slog.Logger) {
	if err := o.queue.EnqueueDelayed(ctx, j, delay); err != nil {
		log.Error("delayed requeue failed", slog.Any("error", err))
	}
}

// pause 可被 ctx 打断的短暂等待。
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// updateEntry 带乐观并发重试的审计更新：冲突时重读后重放 mutate。
func (o *Orchestrator) updateEntry(ctx context.Context, id string, mutate func(e *xauditlog.Entry) error) (*xauditlog.Entry, error) {
	var lastErr error
	for range entryUpdateAttempts {
		e, err := o.audit.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(e); err != nil {
			return nil, err
		}
		if err := o.audit.Update(ctx, e); err != nil {
			if errors.Is(err, xauditlog.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return e, nil
	}
	return nil, lastErr
}

// advanceTo 把审计记录推进到目标状态，必要时借道 PROCESSING。
func advanceTo(e *xauditlog.Entry, to xauditlog.Status) error {
	if xauditlog.CanTransition(e.Status, to) {
		return e.Transition(to)
	}
	if err := e.Transition(xauditlog.StatusProcessing); err != nil {
		return err
	}
	return e.Transition(to)
}

// backoffFor 酒店覆盖的退避策略；未覆盖时使用编排器默认策略。
func (o *Orchestrator) backoffFor(prop *xpmsconf.PropertyConfig) xretry.BackoffPolicy {
	r := prop.Retry
	if r.BackoffStrategy == "" && r.InitialDelaySeconds == 0 {
		return o.backoff
	}
	initial := time.Duration(r.InitialDelaySeconds) * time.Second
	if initial <= 0 {
		initial = 10 * time.Second
	}
	maxDelay := time.Duration(r.MaxDelaySeconds) * time.Second
	if maxDelay <= 0 {
		maxDelay = 300 * time.Second
	}
	switch strings.ToLower(r.BackoffStrategy) {
	case "linear":
		return xretry.NewLinearBackoff(initial, initial, maxDelay)
	case "none":
		return xretry.NewNoBackoff()
	default:
		multiplier := r.Multiplier
		if multiplier < 1 {
			multiplier = 2
		}
		return xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(initial),
			xretry.WithMaxDelay(maxDelay),
			xretry.WithMultiplier(multiplier),
		)
	}
}

// toMsgError 归一化为分类错误；无法识别时按 fallback 分类包裹。
func toMsgError(err error, fallback xmsg.ErrorKind) *xmsg.Error {
	var me *xmsg.Error
	if errors.As(err, &me) {
		return me
	}
	return xmsg.Wrap(fallback, err.Error(), err)
}
