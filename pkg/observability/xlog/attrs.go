package xlog

import "log/slog"

// 常用属性 Key，保持日志字段命名一致。
const (
	// KeyError 错误字段
	KeyError = "error"

	// KeyComponent 组件名称字段
	KeyComponent = "component"

	// KeyPath 文件路径字段
	KeyPath = "path"

	// KeyCount 计数字段
	KeyCount = "count"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component 创建组件名称属性。
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
