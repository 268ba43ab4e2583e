package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer 供 watch 命令在后台 goroutine 写入时并发读取。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), append([]string{"xsrcoptctl"}, args...), strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheck(t *testing.T) {
	code, out, _ := runCLI(t, "", "-n", "10.0.0.0/8,10.0.1.0/24", "-n", "2001:db8::/32", "check")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "[entry_added]")
	assert.Contains(t, out, "[exclusion_added]")
	assert.Contains(t, out, "2 entries, 0 problems")
}

func TestCheck_Problems(t *testing.T) {
	path := writeConfig(t, "srcopt.yaml", `
networks:
  - 10.0.0.0/8,2001:db8::/32
  - 300.0.0.0/8
`)
	code, out, _ := runCLI(t, "", "-c", path, "check")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "[family_mismatch]")
	assert.Contains(t, out, "[invalid_cidr]")
	assert.Contains(t, out, "2 entries, 2 problems")
}

func TestCheck_ConfigErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "check")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "错误:")

	code, _, errOut = runCLI(t, "", "-n", "10.0.0.0/8", "-l", "lots", "check")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "参数错误:")

	code, _, _ = runCLI(t, "", "--log-level", "chatty", "check")
	assert.Equal(t, 2, code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"excluded source", []string{"-n", "10.0.0.0/8,10.0.1.0/24", "classify", "--src", "10.0.1.23", "--dst", "8.8.8.8"}, "dst"},
		{"source", []string{"-n", "10.0.0.0/8,10.0.1.0/24", "classify", "-s", "10.5.5.5", "-d", "8.8.8.8"}, "src"},
		{"none", []string{"-n", "10.0.0.0/8", "classify", "--src", "1.1.1.1", "--dst", "1.1.1.2"}, "none"},
		{"IPv6", []string{"-n", "2001:db8::/32", "classify", "--src", "2001:db8:abcd::ff", "--dst", "fe80::1"}, "src"},
		{"catch all", []string{"-n", "0.0.0.0/0", "classify", "--src", "1.2.3.4", "--dst", "5.6.7.8"}, "src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCLI(t, "", tt.args...)
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestClassify_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad address", []string{"classify", "--src", "10.0.0.256", "--dst", "8.8.8.8"}},
		{"family mismatch", []string{"classify", "--src", "10.0.0.1", "--dst", "::1"}},
		{"missing flag", []string{"classify", "--src", "10.0.0.1"}},
		{"unknown flag", []string{"classify", "--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, "", tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestClassify_LogsProblems(t *testing.T) {
	code, out, errOut := runCLI(t, "", "-n", "10.0.0.0/8,::/0", "--log-format", "json",
		"classify", "--src", "10.0.0.1", "--dst", "8.8.8.8")
	assert.Equal(t, 0, code)
	assert.Equal(t, "src\n", out)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(errOut)), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "family_mismatch", rec["kind"])
}

func TestTable(t *testing.T) {
	path := writeConfig(t, "srcopt.json", `{"limit": 5, "networks": ["10.0.0.0/8,10.0.1.0/24", "bogus"]}`)

	code, out, _ := runCLI(t, "", "-c", path, "table")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "limit 5, 2 entries")
	assert.Contains(t, out, "10.0.0.0/8 (10.0.0.0-10.255.255.255)")
	assert.Contains(t, out, "except 10.0.1.0/24 (10.0.1.0-10.0.1.255)")
	assert.Contains(t, out, "(invalid, never matches)")

	code, out, _ = runCLI(t, "", "-c", path, "-l", "9", "table", "--json")
	require.Equal(t, 0, code)
	var view tableView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 9, view.Limit)
	require.Len(t, view.Entries, 2)
	assert.True(t, view.Entries[0].Valid)
	assert.Equal(t, "IPv4", view.Entries[0].Network.Family)
	require.Len(t, view.Entries[0].Exclusions, 1)
	assert.Equal(t, "10.0.1.255", view.Entries[0].Exclusions[0].End)
	assert.False(t, view.Entries[1].Valid)
	assert.Nil(t, view.Entries[1].Network)

	code, out, _ = runCLI(t, "", "-c", path, "table", "--yaml")
	require.Equal(t, 0, code)
	var yv tableView
	require.NoError(t, yaml.Unmarshal([]byte(out), &yv))
	assert.Equal(t, view.Entries[0], yv.Entries[0])
	assert.Contains(t, out, "cidr: 10.0.0.0/8")

	code, _, _ = runCLI(t, "", "-c", path, "table", "--json", "--yaml")
	assert.Equal(t, 2, code)
}

func TestAggregate(t *testing.T) {
	input := `# src dst sport dport proto bytes
10.0.0.1 8.8.8.8 1000 53 17 80
10.0.0.1 1.1.1.1 1001 443 6 1500

10.0.1.9 9.9.9.9 2000 80 6 60
10.0.1.8 9.9.9.9
192.168.1.1 192.168.1.2 5 6 6 10
`
	code, out, _ := runCLI(t, input, "-n", "10.0.0.0/8,10.0.1.0/24", "aggregate", "--json")
	require.Equal(t, 0, code)

	var recs []recordView
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var r recordView
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		recs = append(recs, r)
	}
	require.Len(t, recs, 3)

	assert.Equal(t, "src", recs[0].Mode)
	assert.Equal(t, "src 10.0.0.1", recs[0].Key)
	assert.EqualValues(t, 2, recs[0].Packets)
	assert.EqualValues(t, 1580, recs[0].Bytes)
	assert.Equal(t, "flush", recs[0].Reason)
	assert.Len(t, recs[0].ID, 16)

	assert.Equal(t, "dst 9.9.9.9", recs[1].Key)
	assert.EqualValues(t, 2, recs[1].Packets)

	assert.Equal(t, "none", recs[2].Mode)
	assert.EqualValues(t, 1, recs[2].Packets)
}

func TestAggregate_Metrics(t *testing.T) {
	input := `10.0.0.1 8.8.8.8 1000 53 17 80
10.0.0.1 1.1.1.1 1001 443 6 1500
10.0.1.9 9.9.9.9 2000 80 6 60
10.0.1.8 9.9.9.9
192.168.1.1 192.168.1.2 5 6 6 10
`
	code, out, _ := runCLI(t, input, "-n", "10.0.0.0/8,10.0.1.0/24", "aggregate", "--metrics")
	require.Equal(t, 0, code)

	for _, want := range []string{
		"xflow.srcopt.decisions{mode=src} 2",
		"xflow.srcopt.decisions{mode=dst} 2",
		"xflow.srcopt.decisions{mode=none} 1",
		"xflow.srcopt.diagnostics{kind=entry_added} 1",
		"xflow.srcopt.diagnostics{kind=exclusion_added} 1",
		"xflow.aggr.records{mode=src,reason=flush} 1",
		"xflow.aggr.records{mode=dst,reason=flush} 1",
		"xflow.aggr.records{mode=none,reason=flush} 1",
		"xflow.aggr.packets 5",
	} {
		assert.Contains(t, out, want+"\n")
	}

	// 快照在所有记录导出之后输出
	assert.Greater(t, strings.Index(out, "xflow.aggr.packets"), strings.Index(out, "packets=2 bytes=1580"))

	// 未指定 --metrics 时不输出快照
	_, out, _ = runCLI(t, input, "-n", "10.0.0.0/8", "aggregate")
	assert.NotContains(t, out, "xflow.")
}

func TestAggregate_FileAndText(t *testing.T) {
	path := writeConfig(t, "packets.txt", "10.0.0.1 8.8.8.8 0 0 0 100\n")
	code, out, _ := runCLI(t, "", "-n", "10.0.0.0/8", "aggregate", path)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "src 10.0.0.1 packets=1 bytes=100 (flush)")
}

func TestAggregate_Errors(t *testing.T) {
	code, _, errOut := runCLI(t, "10.0.0.1\n", "aggregate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "line 1")

	code, _, errOut = runCLI(t, "10.0.0.1 ::1\n", "aggregate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "family mismatch")

	code, _, _ = runCLI(t, "10.0.0.1 8.8.8.8 70000\n", "aggregate")
	assert.Equal(t, 1, code)

	code, _, _ = runCLI(t, "", "aggregate", "--size", "0")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "", "aggregate", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
}

func TestParsePacket(t *testing.T) {
	p, err := parsePacket("2001:db8::1 fe80::1 1 2 6 1234")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.SrcPort)
	assert.EqualValues(t, 2, p.DstPort)
	assert.EqualValues(t, 6, p.Proto)
	assert.EqualValues(t, 1234, p.Bytes)

	for _, bad := range []string{"", "1.1.1.1", "1.1.1.1 x", "1.1.1.1 2.2.2.2 1 2 300", "a b c d e f g"} {
		_, err := parsePacket(bad)
		assert.Error(t, err, bad)
	}
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "srcopt.yaml", "networks: [10.0.0.0/8]")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, errOut := &syncBuffer{}, &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"xsrcoptctl", "-c", path, "watch", "--debounce", "20ms"}, strings.NewReader(""), out, errOut)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching")
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("networks: [10.0.0.0/8, 192.168.0.0/16]"), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "reloaded: 2 entries")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after cancel")
	}
}

func TestWatch_Metrics(t *testing.T) {
	path := writeConfig(t, "srcopt.yaml", "networks: [10.0.0.0/8]")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, errOut := &syncBuffer{}, &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"xsrcoptctl", "-c", path, "watch", "--debounce", "20ms", "--metrics"},
			strings.NewReader(""), out, errOut)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching")
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("networks: [10.0.0.0/8, 192.168.0.0/16]"), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "reloaded: 2 entries")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after cancel")
	}

	got := out.String()
	assert.Contains(t, got, "xflow.srcopt.reloads{status=ok} ")
	assert.Contains(t, got, "xflow.srcopt.reload.duration{status=ok} count=")
	assert.Contains(t, got, "xflow.srcopt.diagnostics{kind=entry_added} ")
}

func TestWatch_RequiresConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "", "watch")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--config")
}

func TestRun_UnknownFlag(t *testing.T) {
	code, _, _ := runCLI(t, "", "--nope", "check")
	assert.Equal(t, 2, code)
}

func TestErrorTypes(t *testing.T) {
	var ue *usageError
	err := usagef("bad %s", "thing")
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "bad thing", err.Error())

	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
	assert.True(t, isCLIUsageError(errors.New(`Required flag "src" not set`)))
	assert.False(t, isCLIUsageError(errors.New("boom")))
}
