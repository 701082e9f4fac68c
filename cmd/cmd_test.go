package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scene = `{
  "name": "Tower A",
  "root": 1,
  "nodes": [
    {"id": 1, "name": "Tower A"},
    {"id": 2, "parent": 1, "name": "Level 1"},
    {"id": 3, "parent": 2, "name": "Wall", "externalId": "w-3",
     "properties": [{"category": "Dimensions", "name": "Height", "value": 3.2, "units": "m"}]},
    {"id": 4, "parent": 2, "name": "Door", "externalId": "d-4",
     "properties": [{"category": "Identity Data", "name": "Mark", "value": "D-01"}]}
  ]
}`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestBuildThenExport(t *testing.T) {
	t.Setenv("SCENEX_LOG_LEVEL", "error")
	dir := t.TempDir()
	src := filepath.Join(dir, "tower.json")
	require.NoError(t, os.WriteFile(src, []byte(scene), 0o644))
	db := filepath.Join(dir, "tower.db")

	out := run(t, "build", src, db)
	assert.Contains(t, out, "Building "+db)
	_, err := os.Stat(db)
	require.NoError(t, err)

	outDir := filepath.Join(dir, "artifacts")
	metricsFile := filepath.Join(dir, "scenex.prom")
	out = run(t, "export", db, "--format", "json", "--out", outDir, "--metrics-file", metricsFile)
	assert.Contains(t, out, "Exported 2 of 4 nodes (50%)")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^tower_a_2obj_\d{8}T\d{6}\.json$`, entries[0].Name())

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	doc, err := oj.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Tower A", jp.MustParseString("$.metadata.modelName").First(doc))
	assert.Equal(t, "D-01", jp.MustParseString("$.objects[1].properties['Identity Data'].Mark.value").First(doc))

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "scenex_nodes_processed_total 4")
}

func TestPolicy(t *testing.T) {
	t.Setenv("SCENEX_LOG_LEVEL", "error")

	out := run(t, "policy")
	assert.Contains(t, out, "name: small")
	assert.Contains(t, out, "name: xlarge")

	out = run(t, "policy", "--nodes", "3000")
	assert.Contains(t, out, "name: medium")
	assert.Contains(t, out, "batch_size: 100")
	assert.NotContains(t, out, "small")
}
