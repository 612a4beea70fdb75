package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "write %s", name)
	return path
}

// writeFixtureConfig creates a two-phase static configuration.
func writeFixtureConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "fast.yaml", `
entries:
  - match: [paracetamol]
    offers:
      - {name: PARACETAMOL 500MG TABLETAS, price: "$100.00", stock: "10"}
`)
	writeFile(t, dir, "cheap.yaml", `
entries:
  - match: [paracetamol]
    offers:
      - {name: PARACETAMOL 500MG GENERICO, price: "$80.00", stock: "0"}
`)
	return writeFile(t, dir, "pricescout.yaml", `
engine:
  fast_provider: sufarmed
throttle:
  min_interval: 0s
providers:
  - {id: sufarmed, phase: 1, kind: static, static_file: fast.yaml, adapter: active_ingredient, markup_percent: 45}
  - {id: fanasa, phase: 2, kind: static, static_file: cheap.yaml, adapter: dose_glued, markup_percent: 15}
`)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"pricescout", "--log-level", "error"}, args...))
	return out.String(), err
}

// TestCheckConfig_PrintsPlan lists providers by phase.
func TestCheckConfig_PrintsPlan(t *testing.T) {
	out, err := runApp(t, "--config", writeFixtureConfig(t), "check-config")
	require.NoError(t, err, "configuration should be valid")

	assert.Contains(t, out, "configuration OK (fast provider: sufarmed", "summary line")
	assert.Contains(t, out, "phase 1:", "phase 1 listed")
	assert.Contains(t, out, "phase 2:", "phase 2 listed")
	assert.Contains(t, out, "adapter=active_ingredient", "adapter listed")
}

// TestCheckConfig_Invalid reports validation messages.
func TestCheckConfig_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "providers:\n  - {id: sufarmed, phase: 0, kind: static, static_file: x.yaml}\n")

	out, err := runApp(t, "--config", path, "check-config")
	require.Error(t, err, "configuration should be rejected")
	assert.Contains(t, out, "Phase", "validation message printed")
}

// TestQuote_FastAndCheapest runs the full flow over static providers and
// prints both options with provider markups.
func TestQuote_FastAndCheapest(t *testing.T) {
	out, err := runApp(t, "--config", writeFixtureConfig(t), "quote", "--caller", "alice", "paracetamol", "500mg")
	require.NoError(t, err, "quote should succeed")

	assert.Contains(t, out, "Fastest option: PARACETAMOL 500MG TABLETAS - $181.82, in stock", "fast offer")
	assert.Contains(t, out, "Lowest price: PARACETAMOL 500MG GENERICO - $94.12, out of stock", "cheap offer")
}

// TestQuote_NotFound prints the not found reply.
func TestQuote_NotFound(t *testing.T) {
	out, err := runApp(t, "--config", writeFixtureConfig(t), "quote", "loratadina")
	require.NoError(t, err, "an empty result is not an error")
	assert.Contains(t, out, `We could not find "loratadina"`, "not found reply")
}

// TestQuote_MissingItem fails with a usage error.
func TestQuote_MissingItem(t *testing.T) {
	_, err := runApp(t, "--config", writeFixtureConfig(t), "quote")
	require.Error(t, err, "item is required")
	assert.Contains(t, err.Error(), "item name is required", "usage error")
}

// TestConfigureLogging validates level and format.
func TestConfigureLogging(t *testing.T) {
	logger := log.New()

	require.NoError(t, configureLogging(logger, "debug", "json"), "valid settings")
	assert.Equal(t, log.DebugLevel, logger.GetLevel(), "level applied")
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter, "json formatter")

	assert.Error(t, configureLogging(logger, "loud", "text"), "invalid level")
	assert.Error(t, configureLogging(logger, "info", "xml"), "invalid format")
}
