package main

import (
	"bytes"
	"context"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(file string) config {
	return config{file: filepath.Join("testdata", file), format: "text", profile: termenv.Ascii}
}

func TestRunText(t *testing.T) {
	for _, file := range []string{"hdr.yaml", "hdr.toml"} {
		t.Run(file, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, run(testConfig(file), &out))
			got := out.String()
			assert.Regexp(t, `(?s)scene.*bloom.*tonemap.*ui`, got)
			assert.Contains(t, got, "Culled\n      histogram\n")
			assert.Contains(t, got, "Memory\n")
		})
	}
}

func TestRunToggles(t *testing.T) {
	cfg := testConfig("hdr.yaml")
	cfg.enable = []string{"histogram"}
	cfg.disable = []string{"ui"}
	var out bytes.Buffer
	require.NoError(t, run(cfg, &out))
	assert.Regexp(t, `\d  histogram `, out.String())
	assert.Contains(t, out.String(), "Culled\n      ui\n")

	cfg.disable = []string{"shadows"}
	assert.ErrorContains(t, run(cfg, &out), `unknown pass "shadows"`)
}

func TestRunFormats(t *testing.T) {
	cfg := testConfig("hdr.toml")
	cfg.format = "dot"
	var out bytes.Buffer
	require.NoError(t, run(cfg, &out))
	assert.True(t, strings.HasPrefix(out.String(), "digraph framegraph {"))

	cfg.format = "Mermaid"
	out.Reset()
	require.NoError(t, run(cfg, &out))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD"))

	cfg.format = "json"
	assert.ErrorContains(t, run(cfg, &out), `unknown format "json"`)
}

func TestRunChart(t *testing.T) {
	cfg := testConfig("hdr.yaml")
	cfg.chart = filepath.Join(t.TempDir(), "plan.png")
	require.NoError(t, run(cfg, &bytes.Buffer{}))

	f, err := os.Open(cfg.chart)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestRunMissingFile(t *testing.T) {
	assert.Error(t, run(testConfig("missing.yaml"), &bytes.Buffer{}))
}

func TestParseLevel(t *testing.T) {
	l, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	l, err = parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	_, err = parseLevel("loud")
	assert.ErrorContains(t, err, "FGPLAN_LOG_LEVEL")
}

// syncBuffer is written by the watch loop while the test polls it.
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

func TestWatchReplans(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "hdr.yaml"))
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(file, src, 0o644))

	cfg := testConfig("")
	cfg.file = file
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, cfg, out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Execution order")
	}, 5*time.Second, 10*time.Millisecond)

	edited := strings.Replace(string(src), "    disabled: true\n", "", 1)
	require.NoError(t, os.WriteFile(file, []byte(edited), 0o644))
	require.Eventually(t, func() bool {
		s := out.String()
		i := strings.Index(s, "-- graph.yaml changed --")
		return i >= 0 && strings.Contains(s[i:], "Memory") && !strings.Contains(s[i:], "Culled")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
