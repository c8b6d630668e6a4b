package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/natcap/ndrbatch/internal/ctxlog"
	"github.com/natcap/ndrbatch/internal/fsutil"
)

// EcoshardPrefix is the storage bucket root every scenario file interpolates
// into its ecoshard URLs via the ecoshard_prefix variable.
const EcoshardPrefix = "https://storage.googleapis.com/"

// moduleNamespace is the python package the in-container pipeline imports
// scenario modules from.
const moduleNamespace = "scenarios"

// Loader reads scenario .hcl files into a merged Set.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new scenario file loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// fileRoot is the top-level structure decoded from any scenario file.
type fileRoot struct {
	Ecoshards []*ecoshardBlock `hcl:"ecoshard,block"`
	Tables    []*tableBlock    `hcl:"biophysical_table,block"`
	Scenarios []*scenarioBlock `hcl:"scenario,block"`
	Scrub     []string         `hcl:"scrub,optional"`
	Remain    hcl.Body         `hcl:",remain"`
}

type ecoshardBlock struct {
	ID  string `hcl:"id,label"`
	URL string `hcl:"url"`
}

type tableBlock struct {
	ID          string `hcl:"id,label"`
	URL         string `hcl:"url"`
	LucodeField string `hcl:"lucode_field"`
}

type scenarioBlock struct {
	ID               string   `hcl:"id,label"`
	LULC             string   `hcl:"lulc"`
	Precip           string   `hcl:"precip"`
	Fertilizer       string   `hcl:"fertilizer"`
	BiophysicalTable string   `hcl:"biophysical_table"`
	DependsOn        []string `hcl:"depends_on,optional"`
}

// Load parses every .hcl file under the given paths and merges the results
// into a validated Set. Files merge the way the original scenario modules
// did: registries accumulate, scenario ids must stay unique.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scenario loader started.", "path_count", len(paths))

	files, err := fsutil.FindHCLFiles(paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered scenario files.", "count", len(files))

	set := NewSet()
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"ecoshard_prefix": cty.StringVal(EcoshardPrefix),
		},
	}

	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse scenario file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode scenario file %s: %w", file, diags)
		}

		module := ModuleForFile(file)
		for _, e := range root.Ecoshards {
			set.AddEcoshard(Ecoshard{ID: e.ID, URL: e.URL})
		}
		for _, t := range root.Tables {
			set.AddTable(BiophysicalTable{ID: t.ID, URL: t.URL, LucodeField: t.LucodeField})
		}
		set.AddScrub(root.Scrub...)
		for _, sc := range root.Scenarios {
			err := set.AddScenario(&Scenario{
				ID:               sc.ID,
				Module:           module,
				LULC:             sc.LULC,
				Precip:           sc.Precip,
				Fertilizer:       sc.Fertilizer,
				BiophysicalTable: sc.BiophysicalTable,
				DependsOn:        sc.DependsOn,
			})
			if err != nil {
				return nil, fmt.Errorf("in scenario file %s: %w", file, err)
			}
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Scenario loading complete.",
		"ecoshards", len(set.Ecoshards),
		"tables", len(set.Tables),
		"scenarios", len(set.Scenarios))
	return set, nil
}

// ModuleForFile maps a scenario file path to the python module path the
// pipeline imports, e.g. scenarios/nci_global.hcl -> scenarios.nci_global.
func ModuleForFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return moduleNamespace + "." + base
}
