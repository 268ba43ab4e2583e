// Package xnet 提供源优化分类器使用的地址编解码与 CIDR 解析。
//
// 与 [net/netip] 的区别在于二进制表示：[Addr] 是按地址族区分的标签联合，
// IPv4 保存为主机字节序的 uint32，IPv6 保存为不透明的 16 字节序列，
// 匹配时直接做位运算，不需要逐次转换字节序。
// 需要与生态互操作时，使用 [AddrFromNetip] / [Addr.Netip] 以及
// [CIDR.Prefix] / [CIDR.Range]（[go4.org/netipx]）。
//
// # 核心功能
//
//   - family.go: 地址族 [Family]（IPv4 / IPv6 / Unspecified）
//   - addr.go: [ParseAddr] 文本地址 → [Addr]，先试 IPv4 再试 IPv6
//   - cidr.go: [ParseCIDR] "address/prefix" → [CIDR]，[CIDR.Contains] 掩码比较
//   - wire.go: [WireCIDR] JSON/YAML 展示格式
//
// # 快速示例
//
//	c, _ := xnet.ParseCIDR("10.0.0.0/8")
//	a, _ := xnet.ParseAddr("10.1.2.3")
//	fmt.Println(c.Contains(a)) // true
//
// # 设计决策
//
//   - CIDR 保存未掩码的原始地址，掩码在比较时同时作用于两侧
//   - 地址族不同永远不匹配，即使位模式在数值上重叠
//   - "::ffff:1.2.3.4" 按 IPv6 处理，不会与 IPv4 条目匹配
//   - 拒绝 zone ID（"fe80::1%eth0"），避免规则因 zone 被静默丢弃而误判
//   - 前缀长度只接受纯十进制数字，"+8"、"-1"、"8 " 均为 [ErrInvalidCIDR]
//
// # 错误处理
//
// 预定义错误变量支持 errors.Is 判断：
//
//	_, err := xnet.ParseCIDR("10.0.0.0/33")
//	if errors.Is(err, xnet.ErrInvalidCIDR) {
//	    // 处理无效 CIDR
//	}
package xnet
