package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func writeBars(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("ts,open,high,low,close,volume\n")
	ts := int64(1704067200000)
	for i := 0; i < n; i++ {
		c := 100 + float64(i%10)
		fmt.Fprintf(&b, "%d,%.2f,%.2f,%.2f,%.2f,10\n", ts+int64(i)*60000, c, c+1, c-1, c)
	}
	path := filepath.Join(t.TempDir(), "BTCUSDT.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "trader version "+version)
}

func TestConfigInitValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	out := execute(t, "config", "init", "-o", path)
	assert.Contains(t, out, "Created default configuration")

	out = execute(t, "config", "validate", "-f", path)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "trend_following")
}

func TestBacktestPlain(t *testing.T) {
	data := writeBars(t, 50)
	out := execute(t, "backtest", "--plain", "--strategy", "noop", "--data", data, "--symbol", "BTCUSDT")
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Strategy:      noop")
	assert.Contains(t, out, "Trades:        0")
	assert.Contains(t, out, "End Balance:   10000.00")
}

func TestJournalTypeDefault(t *testing.T) {
	assert.Equal(t, "none", journalType(""))
	assert.Equal(t, "sqlite", journalType("sqlite"))
}
