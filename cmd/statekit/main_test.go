package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statekit/internal/cli"
	"github.com/aretw0/statekit/internal/config"
	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/docstore"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default, since the commands are package level.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "statekit version "))
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.yaml", "a: 1\nb:\n  c: 2\ntags: [x]\n")
	after := writeFile(t, dir, "after.yaml", "a: 1\nb:\n  c: 5\ntags: [x, y]\n")

	out, err := run(t, "diff", before, after)
	require.NoError(t, err)
	assert.Equal(t, "~ b.c: 2 -> 5\n+ tags.1: \"y\"\n", out)

	out, err = run(t, "diff", "--scope", "b", "--json", before, after)
	require.NoError(t, err)
	var delta []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &delta))
	require.Len(t, delta, 1)
	assert.Equal(t, []any{"b", "c"}, delta[0]["path"])

	out, err = run(t, "diff", "--exit-code", before, before)
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)

	_, err = run(t, "diff", "--exit-code", before, after)
	assert.ErrorIs(t, err, errDifferent)

	_, err = run(t, "diff", "--scope", "missing", before, after)
	assert.Error(t, err)
}

func TestJournalLs(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "statekit.yaml", "journal:\n  backend: redis\n  redis:\n    addr: "+mr.Addr()+"\n")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	rt, err := cli.Build(context.Background(), cfg, logging.NewNop(), cli.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, rt.Store.Dispatch(context.Background(), docstore.ActionSet, docstore.SetPayload{Path: "title", Value: "draft"}))
	require.NoError(t, rt.Close())

	out, err := run(t, "journal", "ls", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "#1 ")
	assert.Contains(t, out, " set\n")
	assert.Contains(t, out, `+ title: "draft"`)

	out, err = run(t, "journal", "ls", "--config", cfgPath, "--json", "--after", "1")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = run(t, "journal", "snapshot", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "no snapshot\n", out)
}

func TestJournal_NotConfigured(t *testing.T) {
	_, err := run(t, "journal", "ls")
	assert.ErrorContains(t, err, "no journal backend configured")
}
