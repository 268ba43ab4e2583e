package xmetrics_test

import (
	"context"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/observability/xmetrics"
	"github.com/omeyang/xflow/pkg/util/xnet"
)

func ExampleMetrics_Instrument() {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := xmetrics.New(xmetrics.WithMeterProvider(mp))
	if err != nil {
		fmt.Println(err)
		return
	}

	table := xsrcopt.Build(context.Background(), 0, []string{"10.0.0.0/8"})
	classifier := m.Instrument(xsrcopt.NewHolder(table))
	fmt.Println(classifier.Classify(xnet.IPv4, xnet.MustParseAddr("10.1.1.1"), xnet.MustParseAddr("1.1.1.1")))

	var rm metricdata.ResourceMetrics
	_ = reader.Collect(context.Background(), &rm)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			fmt.Println(md.Name)
		}
	}
	// Output:
	// src
	// xflow.srcopt.decisions
}
