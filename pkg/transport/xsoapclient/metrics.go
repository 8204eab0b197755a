package xsoapclient

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/omeyang/tclink/xsoapclient"

	metricSendTotal    = "tclink.soap.send.total"
	metricSendDuration = "tclink.soap.send.duration"
)

// sendMetrics 发送指标：总量计数 + 耗时直方图。
type sendMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func newSendMetrics(provider metric.MeterProvider) (*sendMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	total, err := meter.Int64Counter(
		metricSendTotal,
		metric.WithDescription("total soap sends"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xsoapclient: create counter failed: %w", err)
	}

	duration, err := meter.Float64Histogram(
		metricSendDuration,
		metric.WithDescription("soap send duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("xsoapclient: create histogram failed: %w", err)
	}

	return &sendMetrics{total: total, duration: duration}, nil
}

// record 记录一次发送。
// 使用不可取消的 context，超时场景下指标仍能记录。
func (m *sendMetrics) record(ctx context.Context, endpoint, messageType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	metricsCtx := context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("message_type", messageType),
		attribute.String("status", status),
	)
	m.total.Add(metricsCtx, 1, attrs)
	m.duration.Record(metricsCtx, elapsed.Seconds(), attrs)
}
