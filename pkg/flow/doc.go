// Package flow 提供流量处理相关的子包。
//
// 子包列表：
//   - xsrcopt: 源优化分类，按 CIDR 条目表决定流缓存按源还是按目的聚合
//   - xaggr: 流聚合缓存，按分类结果归并报文并导出流记录
//
// 设计原则：
//   - 分类表构建后不可变，热加载通过原子替换整表完成
//   - 分类热路径不加锁、不分配
package flow
