// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、固定属性、轮转）
//   - 动态级别调整（配置热加载后可直接 SetLevel）
//   - 基于 lumberjack 的按大小轮转
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xflow/srcopt.log", xlog.WithMaxBackups(3)).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "network added", slog.String("cidr", "10.0.0.0/8"))
//
// # 设计决策
//
//   - 所有方法强制 context 参数
//   - 方法只接受 slog.Attr，不接受松散的 key-value
//   - 写入失败不向调用方返回错误，也不 panic
package xlog
