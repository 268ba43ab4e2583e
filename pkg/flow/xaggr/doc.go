// Package xaggr 提供按聚合方式合并报文的流缓存。
//
// 每个报文先经 [xsrcopt.Classifier] 分类，再按结果派生流键：
//
//   - ModeSource：只保留地址族和源地址，同一源的所有流合并为一条记录
//   - ModeDestination：只保留地址族和目的地址
//   - ModeNone：完整五元组（地址族、源/目的地址、端口、协议）
//
// 记录保存在 hashicorp/golang-lru/v2 的 expirable LRU 中。
// 容量淘汰、活动超时（ActiveTimeout，从首个报文起计）、Flush 和 Close
// 都会把记录交给导出回调（[WithExporter]）。
//
// # 快速示例
//
//	cache, err := xaggr.New(xaggr.Config{Size: 4096, ActiveTimeout: time.Minute}, holder,
//		xaggr.WithExporter(func(ctx context.Context, r xaggr.Record) { ... }))
//	if err != nil { ... }
//	defer cache.Close(ctx)
//
//	cache.Add(ctx, pkt)
//
// # 并发
//
// 所有方法并发安全。导出回调在锁外同步调用，可以调用 Cache 的方法。
// 后台超时淘汰的记录在下一次 Add、Flush 或 Close 时导出。
package xaggr
