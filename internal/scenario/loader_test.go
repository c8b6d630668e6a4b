package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHCL = `
biophysical_table "table_a" {
  url          = "${ecoshard_prefix}bucket/table_a.csv"
  lucode_field = "ID"
}

ecoshard "lulc_a" {
  url = "${ecoshard_prefix}bucket/lulc_a.tif"
}

ecoshard "precip_a" {
  url = "${ecoshard_prefix}bucket/precip_a.tif"
}

ecoshard "fert_a" {
  url = "${ecoshard_prefix}bucket/fert_a.tif"
}

scrub = ["precip_a"]

scenario "alpha" {
  lulc              = "lulc_a"
  precip            = "precip_a"
  fertilizer        = "fert_a"
  biophysical_table = "table_a"
}
`

func writeScenarioFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScenarioFile(t, dir, "nci_global.hcl", validHCL)

	set, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, set.Scenarios, 1)
	sc := set.Scenarios[0]
	assert.Equal(t, "alpha", sc.ID)
	assert.Equal(t, "scenarios.nci_global", sc.Module)
	assert.Equal(t, "lulc_a", sc.LULC)

	// ecoshard_prefix interpolates into every url.
	assert.Equal(t, EcoshardPrefix+"bucket/lulc_a.tif", set.Ecoshards["lulc_a"].URL)
	require.Contains(t, set.Tables, "table_a")
	assert.Equal(t, "ID", set.Tables["table_a"].LucodeField)
	assert.Equal(t, []string{"precip_a"}, set.Scrub)
}

func TestLoader_MergesAcrossFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScenarioFile(t, dir, "nci_global.hcl", validHCL)
	writeScenarioFile(t, dir, "cbd.hcl", `
ecoshard "lulc_b" {
  url = "${ecoshard_prefix}bucket/lulc_b.tif"
}

scenario "beta" {
  lulc              = "lulc_b"
  precip            = "precip_a"
  fertilizer        = "fert_a"
  biophysical_table = "table_a"
}
`)

	set, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, set.Scenarios, 2)
	beta, ok := set.Lookup("beta")
	require.True(t, ok)
	// Each scenario keeps the module of the file that declared it.
	assert.Equal(t, "scenarios.cbd", beta.Module)
	// The merged registry resolves cross-file references.
	assert.Contains(t, set.Ecoshards, "lulc_b")
	assert.Contains(t, set.Ecoshards, "precip_a")
}

func TestLoader_DuplicateScenarioID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScenarioFile(t, dir, "a_nci.hcl", validHCL)
	writeScenarioFile(t, dir, "b_dup.hcl", `
scenario "alpha" {
  lulc              = "lulc_a"
  precip            = "precip_a"
  fertilizer        = "fert_a"
  biophysical_table = "table_a"
}
`)

	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate scenario id "alpha"`)
}

func TestLoader_UnknownReference(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScenarioFile(t, dir, "bad.hcl", `
biophysical_table "table_a" {
  url          = "${ecoshard_prefix}bucket/table_a.csv"
  lucode_field = "ID"
}

scenario "alpha" {
  lulc              = "missing_lulc"
  precip            = "missing_precip"
  fertilizer        = "missing_fert"
  biophysical_table = "table_a"
}
`)

	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ecoshard")
}

func TestLoader_ParseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScenarioFile(t, dir, "broken.hcl", `scenario "alpha" { lulc = `)

	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
}

func TestModuleForFile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "scenarios.nci_global", ModuleForFile("scenarios/nci_global.hcl"))
	assert.Equal(t, "scenarios.cbd_scenario", ModuleForFile("/abs/path/cbd_scenario.hcl"))
}
