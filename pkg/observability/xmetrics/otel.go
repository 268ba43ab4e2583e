package xmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xflow/pkg/flow/xaggr"
	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/util/xnet"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xflow/xmetrics"

	metricDecisions      = "xflow.srcopt.decisions"
	metricDiagnostics    = "xflow.srcopt.diagnostics"
	metricReloads        = "xflow.srcopt.reloads"
	metricReloadDuration = "xflow.srcopt.reload.duration"
	metricAggrRecords    = "xflow.aggr.records"
	metricAggrPackets    = "xflow.aggr.packets"

	spanReload = "xsrcopt.reload"
)

// 重载状态属性值。
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// Option 定义 [New] 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，默认使用全局 provider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// Metrics 持有所有 OTel 仪表，并发安全。
type Metrics struct {
	tracer trace.Tracer

	decisions      metric.Int64Counter
	diagnostics    metric.Int64Counter
	reloads        metric.Int64Counter
	reloadDuration metric.Float64Histogram
	aggrRecords    metric.Int64Counter
	aggrPackets    metric.Int64Counter

	// 预先构造的属性集合，热路径上不分配
	modeAttrs [3]metric.AddOption
}

// New 创建 Metrics。
func New(opts ...Option) (*Metrics, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	m := &Metrics{tracer: cfg.tracerProvider.Tracer(cfg.instrumentationName)}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.decisions, metricDecisions, "source optimization decisions by mode"},
		{&m.diagnostics, metricDiagnostics, "network table build diagnostics by kind"},
		{&m.reloads, metricReloads, "configuration reloads by status"},
		{&m.aggrRecords, metricAggrRecords, "exported flow records by reason"},
		{&m.aggrPackets, metricAggrPackets, "packets in exported flow records"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCreateCounter, c.name, err)
		}
		*c.dst = counter
	}

	var err error
	m.reloadDuration, err = meter.Float64Histogram(metricReloadDuration,
		metric.WithDescription("configuration reload duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateHistogram, metricReloadDuration, err)
	}

	for _, mode := range []xsrcopt.Mode{xsrcopt.ModeNone, xsrcopt.ModeSource, xsrcopt.ModeDestination} {
		m.modeAttrs[mode] = metric.WithAttributeSet(attribute.NewSet(attribute.String("mode", mode.String())))
	}
	return m, nil
}

// Instrument 包装分类器，记录每次分类结果。
func (m *Metrics) Instrument(c xsrcopt.Classifier) xsrcopt.Classifier {
	return &instrumented{next: c, m: m}
}

type instrumented struct {
	next xsrcopt.Classifier
	m    *Metrics
}

func (i *instrumented) Classify(family xnet.Family, src, dst xnet.Addr) xsrcopt.Mode {
	mode := i.next.Classify(family, src, dst)
	if int(mode) < len(i.m.modeAttrs) {
		i.m.decisions.Add(context.Background(), 1, i.m.modeAttrs[mode])
	}
	return mode
}

// Reporter 返回记录诊断计数的 Reporter，并把诊断继续转发给 next（可为 nil）。
func (m *Metrics) Reporter(next xsrcopt.Reporter) xsrcopt.Reporter {
	return xsrcopt.ReporterFunc(func(ctx context.Context, d xsrcopt.Diagnostic) {
		m.diagnostics.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", d.Kind.String())))
		if next != nil {
			next.Report(ctx, d)
		}
	})
}

// RecordReload 记录一次配置重载结果。
func (m *Metrics) RecordReload(ctx context.Context, err error) {
	m.reloads.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("status", status(err))))
}

// StartReload 开始观测一次配置重载，返回的 end 记录 span 状态、计数和耗时，
// 只应调用一次。
func (m *Metrics) StartReload(ctx context.Context) (context.Context, func(err error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := m.tracer.Start(ctx, spanReload, trace.WithSpanKind(trace.SpanKindInternal))
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		// 使用不可取消的 context，重载被取消时仍记录结果
		mctx := context.WithoutCancel(ctx)
		attrs := metric.WithAttributes(attribute.String("status", status(err)))
		m.reloads.Add(mctx, 1, attrs)
		m.reloadDuration.Record(mctx, time.Since(start).Seconds(), attrs)
	}
}

// Exporter 包装流记录导出回调，记录导出原因和报文数。next 可为 nil。
func (m *Metrics) Exporter(next xaggr.Exporter) xaggr.Exporter {
	return func(ctx context.Context, r xaggr.Record) {
		m.aggrRecords.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", r.Reason.String()),
			attribute.String("mode", r.Key.Mode.String()),
		))
		m.aggrPackets.Add(ctx, int64(min(r.Packets, 1<<62)))
		if next != nil {
			next(ctx, r)
		}
	}
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
