package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/omeyang/xflow/pkg/config/xconf"
	"github.com/omeyang/xflow/pkg/flow/xaggr"
	"github.com/omeyang/xflow/pkg/flow/xsrcopt"
	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/util/xnet"
)

// defaultLogLevel 命令行默认只输出告警，避免 check/classify 的正常输出被日志淹没。
const defaultLogLevel = "warn"

// defaultDebounce watch 命令的默认防抖时间。
const defaultDebounce = 100 * time.Millisecond

// exitError 表示命令已完成输出，只需设置非零退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status " + strconv.Itoa(e.code) }

// usageError 表示参数错误，退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// onUsageError 把 flag 解析错误统一转换为 usageError。
func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

// createApp 创建 CLI 应用。
func createApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xsrcoptctl",
		Usage:     "源优化网络配置检查与分类工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Sources: cli.EnvVars("XSRCOPT_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:    "net",
				Aliases: []string{"n"},
				Usage:   "追加网络条目 main_cidr[,exclude_cidr]*，可重复",
			},
			&cli.StringFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "limit 参数，覆盖配置文件",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 debug/info/warn/error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 text/json",
			},
		},
		Commands: []*cli.Command{
			createCheckCommand(),
			createClassifyCommand(),
			createTableCommand(),
			createAggregateCommand(),
			createWatchCommand(),
		},
		OnUsageError: onUsageError,
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，由 run() 统一映射退出码。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// env 是单次命令执行所需的配置、日志和输出。
type env struct {
	settings *xconf.Settings
	logger   xlog.Logger
	cleanup  func() error
	stdout   io.Writer
}

// newEnv 合并配置文件与全局选项：--net 追加在配置文件条目之后，
// --limit 和日志选项覆盖配置文件。
func newEnv(cmd *cli.Command) (*env, error) {
	root := cmd.Root()

	s := &xconf.Settings{}
	if path := root.String("config"); path != "" {
		loaded, err := xconf.Load(path)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	s.Networks = append(s.Networks, root.StringSlice("net")...)
	if root.IsSet("limit") {
		limit, err := xconf.ParseLimit(root.String("limit"))
		if err != nil {
			return nil, &usageError{err: err}
		}
		s.Limit = limit
	}

	ls := s.Log
	if v := root.String("log-level"); v != "" {
		ls.Level = v
	} else if ls.Level == "" {
		ls.Level = defaultLogLevel
	}
	if v := root.String("log-format"); v != "" {
		ls.Format = v
	}

	var (
		logger  xlog.LoggerWithLevel
		cleanup func() error
		err     error
	)
	if ls.File != "" {
		logger, cleanup, err = ls.NewLogger()
	} else {
		logger, cleanup, err = xlog.New().
			SetOutput(root.ErrWriter).
			SetLevelString(ls.Level).
			SetFormat(ls.Format).
			Build()
	}
	if err != nil {
		return nil, &usageError{err: err}
	}
	return &env{settings: s, logger: logger, cleanup: cleanup, stdout: root.Writer}, nil
}

func (e *env) close() {
	if e.cleanup != nil {
		_ = e.cleanup()
	}
}

// withEnv 为命令 Action 准备 env 并在结束后关闭日志。
func withEnv(fn func(ctx context.Context, cmd *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(ctx, cmd, e)
	}
}

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:         "check",
		Usage:        "构建网络条目表并输出所有诊断，存在配置问题时退出码为 1",
		OnUsageError: onUsageError,
		Action:       withEnv(cmdCheck),
	}
}

func cmdCheck(ctx context.Context, _ *cli.Command, e *env) error {
	c := &xsrcopt.Collector{}
	table := e.settings.BuildTable(ctx, xsrcopt.WithReporter(c))

	for _, d := range c.Diagnostics() {
		fmt.Fprintln(e.stdout, d)
	}
	problems := len(c.Problems())
	fmt.Fprintf(e.stdout, "%d entries, %d problems\n", table.Len(), problems)
	if problems > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func createClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "对一对地址分类，输出 none/src/dst",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "src", Aliases: []string{"s"}, Usage: "源地址", Required: true},
			&cli.StringFlag{Name: "dst", Aliases: []string{"d"}, Usage: "目的地址", Required: true},
		},
		OnUsageError: onUsageError,
		Action:       withEnv(cmdClassify),
	}
}

func cmdClassify(ctx context.Context, cmd *cli.Command, e *env) error {
	src, err := xnet.ParseAddr(cmd.String("src"))
	if err != nil {
		return &usageError{err: err}
	}
	dst, err := xnet.ParseAddr(cmd.String("dst"))
	if err != nil {
		return &usageError{err: err}
	}
	if src.Family() != dst.Family() {
		return usagef("address family mismatch: %s is %s, %s is %s", src, src.Family(), dst, dst.Family())
	}

	table := e.settings.BuildTable(ctx, xsrcopt.WithReporter(xsrcopt.NewLogReporter(e.logger)))
	fmt.Fprintln(e.stdout, table.Classify(src.Family(), src, dst))
	return nil
}

// tableView 是 table --json/--yaml 的输出格式。
type tableView struct {
	Limit   int         `json:"limit" yaml:"limit"`
	Entries []entryView `json:"entries" yaml:"entries"`
}

type entryView struct {
	Index      int             `json:"index" yaml:"index"`
	Valid      bool            `json:"valid" yaml:"valid"`
	Network    *xnet.WireCIDR  `json:"network,omitempty" yaml:"network,omitempty"`
	Exclusions []xnet.WireCIDR `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

func newTableView(t *xsrcopt.Table) tableView {
	v := tableView{Limit: t.Limit(), Entries: make([]entryView, 0, t.Len())}
	for i, e := range t.Entries() {
		ev := entryView{Index: i}
		if w, err := xnet.WireCIDRFrom(e.CIDR()); err == nil {
			ev.Valid = true
			ev.Network = &w
		}
		for _, x := range e.Exclusions() {
			if w, err := xnet.WireCIDRFrom(x); err == nil {
				ev.Exclusions = append(ev.Exclusions, w)
			}
		}
		v.Entries = append(v.Entries, ev)
	}
	return v
}

func createTableCommand() *cli.Command {
	return &cli.Command{
		Name:  "table",
		Usage: "输出网络条目表",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "输出 JSON"},
			&cli.BoolFlag{Name: "yaml", Usage: "输出 YAML"},
		},
		OnUsageError: onUsageError,
		Action:       withEnv(cmdTable),
	}
}

func cmdTable(ctx context.Context, cmd *cli.Command, e *env) error {
	if cmd.Bool("json") && cmd.Bool("yaml") {
		return usagef("--json and --yaml are mutually exclusive")
	}
	table := e.settings.BuildTable(ctx, xsrcopt.WithReporter(xsrcopt.NewLogReporter(e.logger)))
	view := newTableView(table)

	switch {
	case cmd.Bool("json"):
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case cmd.Bool("yaml"):
		enc := yaml.NewEncoder(e.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(e.stdout, "limit %d, %d entries\n", view.Limit, len(view.Entries))
	for _, ev := range view.Entries {
		if !ev.Valid {
			fmt.Fprintf(e.stdout, "%3d  (invalid, never matches)\n", ev.Index)
			continue
		}
		fmt.Fprintf(e.stdout, "%3d  %s\n", ev.Index, ev.Network)
		for _, x := range ev.Exclusions {
			fmt.Fprintf(e.stdout, "     except %s\n", x)
		}
	}
	return nil
}

func createAggregateCommand() *cli.Command {
	return &cli.Command{
		Name:      "aggregate",
		Usage:     "读取报文（每行: src dst [sport dport proto bytes]）并按分类结果聚合",
		ArgsUsage: "[file|-]（支持 .gz/.zst）",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "size", Usage: "流缓存容量", Value: 4096},
			newMetricsFlag(),
			&cli.BoolFlag{Name: "json", Usage: "每条记录输出一行 JSON"},
		},
		OnUsageError: onUsageError,
		Action:       withEnv(cmdAggregate),
	}
}

// recordView 是 aggregate --json 的单条输出。
type recordView struct {
	ID      string `json:"id"`
	Mode    string `json:"mode"`
	Key     string `json:"key"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Reason  string `json:"reason"`
}

func cmdAggregate(ctx context.Context, cmd *cli.Command, e *env) error {
	in, closeIn, err := openInput(cmd.Args().First(), cmd.Root().Reader)
	if err != nil {
		return err
	}
	defer func() { _ = closeIn() }()

	m, dumpMetrics, err := newMetrics(cmd, e.stdout)
	if err != nil {
		return err
	}
	table := e.settings.BuildTable(ctx, xsrcopt.WithReporter(m.Reporter(xsrcopt.NewLogReporter(e.logger))))

	asJSON := cmd.Bool("json")
	enc := json.NewEncoder(e.stdout)
	emit := func(_ context.Context, r xaggr.Record) {
		if asJSON {
			_ = enc.Encode(recordView{
				ID:      fmt.Sprintf("%016x", r.ID),
				Mode:    r.Key.Mode.String(),
				Key:     r.Key.String(),
				Packets: r.Packets,
				Bytes:   r.Bytes,
				Reason:  r.Reason.String(),
			})
			return
		}
		fmt.Fprintf(e.stdout, "%016x %-4s %s packets=%d bytes=%d (%s)\n",
			r.ID, r.Key.Mode, r.Key, r.Packets, r.Bytes, r.Reason)
	}

	cache, err := xaggr.New(xaggr.Config{Size: cmd.Int("size")}, m.Instrument(table),
		xaggr.WithExporter(m.Exporter(emit)))
	if err != nil {
		return &usageError{err: err}
	}

	feedErr := feedPackets(ctx, in, cache)
	// 先关闭缓存，快照才包含最后导出的记录
	cache.Close(ctx)
	return errors.Join(feedErr, dumpMetrics(ctx))
}

// feedPackets 逐行解析报文并写入缓存，跳过空行和 # 注释。
func feedPackets(ctx context.Context, in io.Reader, cache *xaggr.Cache) error {
	sc := bufio.NewScanner(in)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parsePacket(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		cache.Add(ctx, p)
	}
	return sc.Err()
}

// parsePacket 解析 "src dst [sport dport proto bytes]"，缺省字段为 0。
func parsePacket(line string) (xaggr.Packet, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 6 {
		return xaggr.Packet{}, fmt.Errorf("want 2 to 6 fields, got %d", len(fields))
	}
	src, err := xnet.ParseAddr(fields[0])
	if err != nil {
		return xaggr.Packet{}, err
	}
	dst, err := xnet.ParseAddr(fields[1])
	if err != nil {
		return xaggr.Packet{}, err
	}
	if src.Family() != dst.Family() {
		return xaggr.Packet{}, fmt.Errorf("address family mismatch: %s, %s", src.Family(), dst.Family())
	}

	p := xaggr.Packet{Family: src.Family(), Src: src, Dst: dst}
	var nums [4]uint64
	bits := [4]int{16, 16, 8, 64}
	for i, f := range fields[2:] {
		nums[i], err = strconv.ParseUint(f, 10, bits[i])
		if err != nil {
			return xaggr.Packet{}, fmt.Errorf("field %d: %w", i+3, err)
		}
	}
	p.SrcPort = uint16(nums[0])
	p.DstPort = uint16(nums[1])
	p.Proto = uint8(nums[2])
	p.Bytes = nums[3]
	return p, nil
}

func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "监视配置文件，变更后重建网络条目表，直到被中断",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "debounce", Usage: "防抖时间", Value: defaultDebounce},
			newMetricsFlag(),
		},
		OnUsageError: onUsageError,
		Action:       withEnv(cmdWatch),
	}
}

func cmdWatch(ctx context.Context, cmd *cli.Command, e *env) error {
	path := cmd.Root().String("config")
	if path == "" {
		return usagef("watch requires --config")
	}

	m, dumpMetrics, err := newMetrics(cmd, e.stdout)
	if err != nil {
		return err
	}
	reporter := m.Reporter(xsrcopt.NewLogReporter(e.logger))
	holder := xsrcopt.NewHolder(e.settings.BuildTable(ctx, xsrcopt.WithReporter(reporter)))
	fmt.Fprintf(e.stdout, "watching %s: %d entries\n", path, holder.Load().Len())

	w, err := xconf.Watch(path, holder,
		xconf.WithDebounce(cmd.Duration("debounce")),
		xconf.WithLogger(e.logger),
		xconf.WithObserver(m),
		xconf.WithBuildOptions(xsrcopt.WithReporter(reporter)),
		xconf.WithOnReload(func(_ *xconf.Settings, t *xsrcopt.Table, err error) {
			if err != nil {
				fmt.Fprintf(e.stdout, "reload failed: %v\n", err)
				return
			}
			fmt.Fprintf(e.stdout, "reloaded: %d entries\n", t.Len())
		}),
	)
	if err != nil {
		return err
	}

	// 监视循环与停止协程放在同一 errgroup 中：中断或循环自行退出时都会 Stop，
	// Wait 返回时后台 goroutine 已全部退出。
	var g errgroup.Group
	g.Go(func() error {
		w.Start()
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-w.Done():
		}
		return w.Stop()
	})
	return errors.Join(g.Wait(), dumpMetrics(ctx))
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
