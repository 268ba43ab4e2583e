// Package xmetrics 为源优化分类、构建期诊断、配置重载和流导出提供
// OpenTelemetry 指标与追踪。
//
// # 使用示例
//
//	m, err := xmetrics.New(xmetrics.WithMeterProvider(mp))
//	if err != nil { ... }
//	classifier := m.Instrument(holder)
//	table := xsrcopt.Build(ctx, 0, specs, xsrcopt.WithReporter(m.Reporter(nil)))
//	w, _ := xconf.Watch(path, holder, xconf.WithObserver(m))
//
// # 指标命名
//
//   - xflow.srcopt.decisions{mode}     分类结果计数（none/src/dst）
//   - xflow.srcopt.diagnostics{kind}   构建期诊断计数
//   - xflow.srcopt.reloads{status}     配置重载计数（ok/error）
//   - xflow.srcopt.reload.duration     配置重载耗时（秒）
//   - xflow.aggr.records{reason}       流记录导出计数
//   - xflow.aggr.packets               导出记录中的报文数
//
// 配置重载同时产生名为 "xsrcopt.reload" 的 span。
package xmetrics
