// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xnet: IP 地址与 CIDR 工具库，基于 net/netip + go4.org/netipx（解析、包含判断、序列化）
//
// 设计原则：
//   - 值类型、零值安全
//   - 解析严格，拒绝带 zone 的地址和非纯数字的前缀长度
package util
