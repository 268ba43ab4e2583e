package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xflow/pkg/observability/xmetrics"
)

// newMetricsFlag 创建 aggregate 和 watch 的 --metrics 选项。
// flag 实例保存解析状态，每个命令各用一个。
func newMetricsFlag() cli.Flag {
	return &cli.BoolFlag{Name: "metrics", Usage: "退出前输出 OpenTelemetry 指标快照"}
}

// newMetrics 创建命令使用的 xmetrics。未指定 --metrics 时使用全局 provider，
// 返回的 dump 为空操作；否则挂接 ManualReader，dump 把快照写到 w 并关闭 provider。
func newMetrics(cmd *cli.Command, w io.Writer) (*xmetrics.Metrics, func(context.Context) error, error) {
	if !cmd.Bool("metrics") {
		m, err := xmetrics.New()
		return m, func(context.Context) error { return nil }, err
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := xmetrics.New(xmetrics.WithMeterProvider(provider))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}

	dump := func(ctx context.Context) error {
		// 命令被中断时仍输出快照
		ctx = context.WithoutCancel(ctx)
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			_ = provider.Shutdown(ctx)
			return fmt.Errorf("collect metrics: %w", err)
		}
		for _, line := range formatMetrics(rm) {
			fmt.Fprintln(w, line)
		}
		return provider.Shutdown(ctx)
	}
	return m, dump, nil
}

// formatMetrics 每个数据点一行，形如 "name{k=v,...} value"，按字典序排列。
func formatMetrics(rm metricdata.ResourceMetrics) []string {
	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			switch data := mt.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s%s %d", mt.Name, labels(dp.Attributes), dp.Value))
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s%s count=%d sum=%g",
						mt.Name, labels(dp.Attributes), dp.Count, dp.Sum))
				}
			}
		}
	}
	slices.Sort(lines)
	return lines
}

func labels(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	return "{" + set.Encoded(attribute.DefaultEncoder()) + "}"
}
