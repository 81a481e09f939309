package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/rafters-studio/motion-coordinator/internal/clock"
	"github.com/rafters-studio/motion-coordinator/internal/config"
	"github.com/rafters-studio/motion-coordinator/internal/control"
	"github.com/rafters-studio/motion-coordinator/internal/engine"
)

var fixtureDir = filepath.Join("..", "..", "internal", "replay", "testdata")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// startService runs a control service on a loopback port and returns its
// address.
func startService(t *testing.T) (*engine.Engine, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Journal.Enabled = false
	eng, err := engine.New(cfg, engine.Options{
		Clock:  clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	control.NewServer(eng, zerolog.Nop()).Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)
	return eng, lis.Addr().String()
}

func TestReplayCommandPasses(t *testing.T) {
	out, err := execute(t, "replay",
		filepath.Join(fixtureDir, "attention_and_queue.yaml"),
		filepath.Join(fixtureDir, "pause_and_budget.json"))
	require.NoError(t, err, out)
	assert.Equal(t, 2, strings.Count(out, "PASS"))
	assert.NotContains(t, out, "FAIL")
}

func TestReplayCommandFailsOnMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, writeFile(path, "steps:\n  - {op: pop_focus, expect: dropdown}\n"))

	out, err := execute(t, "replay", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 fixtures failed")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, `outcome "empty", want "dropdown"`)
}

func TestInspectJournalFromReplay(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	_, err := execute(t, "replay", "--journal", dsn, filepath.Join(fixtureDir, "attention_and_queue.yaml"))
	require.NoError(t, err)

	out, err := execute(t, "inspect", "--dsn", dsn, "--last", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "decisions by kind")
	assert.Contains(t, out, "surface_registered")
	assert.Contains(t, out, "last 5 decisions")

	out, err = execute(t, "inspect", "--dsn", dsn, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"surface_refused": 1`)
	assert.Contains(t, out, `"kind": "animation_completed"`)
}

func TestInspectRequiresDSN(t *testing.T) {
	_, err := execute(t, "inspect")
	assert.Error(t, err)
}

func TestRemoteCommands(t *testing.T) {
	eng, addr := startService(t)

	out, err := execute(t, "pause", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "motion paused")
	assert.True(t, eng.Controller.Paused())

	out, err = execute(t, "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "paused")
	assert.Contains(t, out, "0/15")

	out, err = execute(t, "resume", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "motion resumed")
	assert.False(t, eng.Controller.Paused())

	out, err = execute(t, "budget", "--addr", addr, "--max-concurrent", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "budget in force")
	assert.Equal(t, 4, eng.Controller.Budget().MaxConcurrentAnimations)
	assert.Equal(t, 15, eng.Controller.Budget().MaxTotalCognitiveLoad)

	_, err = execute(t, "budget", "--addr", addr, "--max-load", "50")
	assert.Error(t, err)
	assert.Equal(t, 15, eng.Controller.Budget().MaxTotalCognitiveLoad)

	out, err = execute(t, "audit", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "all checks passed")
	assert.Contains(t, out, "queue_purity")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
