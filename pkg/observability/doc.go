// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持 lumberjack 文件轮转
//   - xmetrics: 基于 OpenTelemetry 的源优化分类与流聚合指标、重载追踪
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 热路径上的属性集合预先计算，记录时不分配
package observability
