package outbound

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/omeyang/tclink/outbound"

	metricJobsTotal   = "tclink.outbound.jobs.total"
	metricJobDuration = "tclink.outbound.job.duration"
)

// jobMetrics 任务指标：按结果计数 + 处理耗时直方图。
type jobMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func newJobMetrics(provider metric.MeterProvider) (*jobMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	total, err := meter.Int64Counter(
		metricJobsTotal,
		metric.WithDescription("total outbound jobs processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("outbound: create counter failed: %w", err)
	}

	duration, err := meter.Float64Histogram(
		metricJobDuration,
		metric.WithDescription("outbound job processing duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("outbound: create histogram failed: %w", err)
	}

	return &jobMetrics{total: total, duration: duration}, nil
}

// record 记录一次任务处理。使用不可取消的 context，
// 取消场景下指标仍能记录。
func (m *jobMetrics) record(ctx context.Context, messageType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	metricsCtx := context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.String("outcome", outcome),
	)
	m.total.Add(metricsCtx, 1, attrs)
	m.duration.Record(metricsCtx, elapsed.Seconds(), attrs)
}
