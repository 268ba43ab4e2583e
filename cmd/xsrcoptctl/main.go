// xsrcoptctl 检查源优化网络配置、对报文做离线分类，并可监视配置热加载。
//
// 用法:
//
//	xsrcoptctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件路径（.yaml/.yml/.json）
//	-n, --net        追加网络条目 "main_cidr[,exclude_cidr]*"，可重复
//	-l, --limit      limit 参数（文本，覆盖配置文件）
//	    --log-level  日志级别 debug/info/warn/error
//	    --log-format 日志格式 text/json
//
// 命令:
//
//	check            构建网络条目表并输出所有诊断
//	classify         对一对地址分类：--src A --dst B
//	table            输出网络条目表（--json / --yaml 输出机器可读格式）
//	aggregate        从文件（支持 .gz/.zst）或标准输入读取报文并按分类结果聚合（--metrics 输出指标）
//	watch            监视配置文件并在每次变更后重建表（--metrics 退出时输出指标）
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（check 命令: 存在配置问题）
//	2: 参数错误
//
// 示例:
//
//	xsrcoptctl -c /etc/xflow/srcopt.yaml check
//	xsrcoptctl -n 10.0.0.0/8,10.0.1.0/24 classify --src 10.0.1.23 --dst 8.8.8.8
//	xsrcoptctl -c srcopt.yaml table --json
//	xsrcoptctl -n 10.0.0.0/8 aggregate --json packets.txt.zst
//	xsrcoptctl -c srcopt.yaml watch --log-format json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := createApp(stdin, stdout, stderr)
	err := app.Run(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr.err)
		return 2
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		fmt.Fprintln(stderr, coder)
		return 2
	}
	if isCLIUsageError(err) {
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 在 OnUsageError 之外直接返回的参数错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"flag provided but not defined",
		"Required flag",
		"No help topic",
		"invalid value",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
