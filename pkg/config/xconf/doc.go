// Package xconf 加载源优化配置并在文件变更时重建网络条目表，基于 koanf 实现。
//
// # 配置格式
//
// 支持 YAML（.yaml/.yml）和 JSON（.json），格式由扩展名决定：
//
//	limit: 100          # 保留参数，原样传给 xsrcopt.Build，字符串 "100" 也可以
//	networks:
//	  - 10.0.0.0/8,10.0.1.0/24
//	  - 2001:db8::/32
//	log:
//	  level: info       # debug/info/warn/error
//	  format: json      # text/json
//	  file: /var/log/xflow/srcopt.log
//
// Unmarshal 使用 mapstructure 弱类型转换（koanf 默认行为）。
// 网络条目本身的合法性不在这里校验，由 xsrcopt.Build 以诊断形式报告。
//
// # 配置监视
//
// [Watch] 监视配置文件所在目录（fsnotify），内置防抖；变更后重新读取文件
// （avast/retry-go 重试，覆盖编辑器截断后再写入的中间状态），重建 Table
// 并原子替换到 xsrcopt.Holder。读取或解析失败时保留旧表。
package xconf
