package xconf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Settings 是源优化的完整配置。
type Settings struct {
	// Limit 保留参数，原样保存到 Table，当前不参与匹配。
	Limit int `koanf:"limit" json:"limit" yaml:"limit"`

	// Networks 网络条目，每项形如 "main_cidr[,exclude_cidr]*"，顺序即匹配顺序。
	Networks []string `koanf:"networks" json:"networks" yaml:"networks"`

	Log LogSettings `koanf:"log" json:"log" yaml:"log"`
}

// LogSettings 是日志配置。
type LogSettings struct {
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level,omitempty"`
	Format string `koanf:"format" json:"format,omitempty" yaml:"format,omitempty"`
	// File 非空时写入文件并按大小轮转，否则写 stderr。
	File string `koanf:"file" json:"file,omitempty" yaml:"file,omitempty"`
	// MaxSizeMB 单个日志文件上限，0 使用 xlog 默认值。
	MaxSizeMB int `koanf:"max_size_mb" json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
}

// BuildTable 用当前配置构建网络条目表。nil Settings 得到空表。
func (s *Settings) BuildTable(ctx context.Context, opts ...xsrcopt.Option) *xsrcopt.Table {
	if s == nil {
		return xsrcopt.Build(ctx, 0, nil, opts...)
	}
	return xsrcopt.Build(ctx, s.Limit, s.Networks, opts...)
}

// NewLogger 按日志配置构建 xlog Logger，返回的 cleanup 关闭轮转文件。
func (l LogSettings) NewLogger() (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(l.Level).
		SetFormat(l.Format).
		SetAttrs(xlog.Component("xflow"))
	if l.File != "" {
		var ropts []xlog.RotationOption
		if l.MaxSizeMB > 0 {
			ropts = append(ropts, xlog.WithMaxSize(l.MaxSizeMB))
		}
		b.SetRotation(l.File, ropts...)
	}
	return b.Build()
}

// ParseLimit 解析文本形式的 limit。空串视为 0。
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
	}
	return n, nil
}
