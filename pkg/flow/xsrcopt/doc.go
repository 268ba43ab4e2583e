// Package xsrcopt 实现流缓存的源优化（source optimization）分类器。
//
// 给定报文的地址族、源地址和目的地址，决定外层流缓存按源地址聚合、
// 按目的地址聚合，还是不聚合。典型场景：只关心流量从哪里来/到哪里去，
// 希望把同一目标的大量短流合并为一条记录导出，以减少导出量。
//
// # 配置格式
//
// 每个网络条目是一个字符串 "main_cidr[,exclude_cidr]*"，例如：
//
//	10.0.0.0/8,10.0.1.0/24
//	2001:db8::/32
//
// 主 CIDR 定义聚合范围，排除项是其中的子范围，命中排除项时聚合键反转
// （源 ↔ 目的），而不是关闭聚合。
//
// # 快速示例
//
//	table := xsrcopt.Build(ctx, 0, []string{"10.0.0.0/8,10.0.1.0/24"},
//		xsrcopt.WithReporter(xsrcopt.NewLogReporter(logger)))
//
//	src := xnet.MustParseAddr("10.5.5.5")
//	dst := xnet.MustParseAddr("8.8.8.8")
//	mode := table.Classify(xnet.IPv4, src, dst) // ModeSource
//
// # 匹配规则
//
//   - 按配置顺序遍历，第一个主 CIDR 包含源或目的地址的条目决定结果（不是最长前缀匹配）
//   - 同一条目内源地址优先于目的地址
//   - 地址族不同永不匹配；Unspecified 地址族总是返回 ModeNone
//   - 排除项按配置顺序检查，命中即停止
//
// # 构建期诊断
//
// [Build] 从不失败。解析失败、地址族不符、排除项越出主范围、超出容量等问题
// 以 [Diagnostic] 报告给 [Reporter]（默认丢弃），可接入 xlog（[NewLogReporter]）、
// 收集器（[Collector]）或指标（xmetrics）。
//
// # 并发
//
// [Table] 构建完成后不可变，[Table.Classify] 不分配内存、不加锁，
// 可在多个报文处理 goroutine 中并发调用。配置热加载通过 [Holder]
// 原子替换整张表实现。
package xsrcopt
