package scenario

import (
	"fmt"
)

// Ecoshard is one downloadable input raster or table, identified by a short
// token and fetched by the pipeline from its canonical URL.
type Ecoshard struct {
	ID  string
	URL string
}

// BiophysicalTable is an ecoshard holding the lulc-code to nutrient
// coefficient mapping, plus the name of the column that carries the lulc code.
type BiophysicalTable struct {
	ID          string
	URL         string
	LucodeField string
}

// Scenario is one named parameter configuration for the pipeline. The lulc,
// precip and fertilizer fields reference ecoshard ids; the biophysical table
// field references a biophysical_table block.
type Scenario struct {
	ID               string
	Module           string
	LULC             string
	Precip           string
	Fertilizer       string
	BiophysicalTable string
	DependsOn        []string
}

// Set is the merged view of every loaded scenario file. Scenarios keep their
// declaration order; ecoshards and tables merge additively across files with
// later files overriding earlier ids, matching how the original scenario
// modules accumulated their registries.
type Set struct {
	Ecoshards map[string]Ecoshard
	Tables    map[string]BiophysicalTable
	Scrub     []string
	Scenarios []*Scenario

	byID map[string]*Scenario
}

// NewSet returns an empty, initialized Set.
func NewSet() *Set {
	return &Set{
		Ecoshards: make(map[string]Ecoshard),
		Tables:    make(map[string]BiophysicalTable),
		byID:      make(map[string]*Scenario),
	}
}

// AddEcoshard registers or replaces an ecoshard by id.
func (s *Set) AddEcoshard(e Ecoshard) {
	s.Ecoshards[e.ID] = e
}

// AddTable registers or replaces a biophysical table by id.
func (s *Set) AddTable(t BiophysicalTable) {
	s.Tables[t.ID] = t
}

// AddScrub appends ecoshard ids that need scrubbing before use.
func (s *Set) AddScrub(ids ...string) {
	s.Scrub = append(s.Scrub, ids...)
}

// AddScenario appends a scenario. Scenario ids must be unique across all
// loaded files.
func (s *Set) AddScenario(sc *Scenario) error {
	if sc.ID == "" {
		return fmt.Errorf("scenario with empty id")
	}
	if _, exists := s.byID[sc.ID]; exists {
		return fmt.Errorf("duplicate scenario id %q", sc.ID)
	}
	s.byID[sc.ID] = sc
	s.Scenarios = append(s.Scenarios, sc)
	return nil
}

// Lookup returns the scenario with the given id, if present.
func (s *Set) Lookup(id string) (*Scenario, bool) {
	sc, ok := s.byID[id]
	return sc, ok
}

// IDsOf returns the ids of the given scenarios in slice order.
func IDsOf(scenarios []*Scenario) []string {
	ids := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		ids = append(ids, sc.ID)
	}
	return ids
}

// Validate checks that every reference in the set resolves: scenario inputs
// to ecoshards, biophysical table refs to tables, depends_on to scenarios,
// and scrub ids to ecoshards.
func (s *Set) Validate() error {
	for _, sc := range s.Scenarios {
		for _, ref := range []struct{ field, id string }{
			{"lulc", sc.LULC},
			{"precip", sc.Precip},
			{"fertilizer", sc.Fertilizer},
		} {
			if ref.id == "" {
				return fmt.Errorf("scenario %q: %s is required", sc.ID, ref.field)
			}
			if _, ok := s.Ecoshards[ref.id]; !ok {
				return fmt.Errorf("scenario %q: %s references unknown ecoshard %q", sc.ID, ref.field, ref.id)
			}
		}
		if sc.BiophysicalTable == "" {
			return fmt.Errorf("scenario %q: biophysical_table is required", sc.ID)
		}
		if _, ok := s.Tables[sc.BiophysicalTable]; !ok {
			return fmt.Errorf("scenario %q: references unknown biophysical_table %q", sc.ID, sc.BiophysicalTable)
		}
		for _, dep := range sc.DependsOn {
			if _, ok := s.byID[dep]; !ok {
				return fmt.Errorf("scenario %q: depends_on unknown scenario %q", sc.ID, dep)
			}
		}
	}
	for _, id := range s.Scrub {
		if _, ok := s.Ecoshards[id]; !ok {
			return fmt.Errorf("scrub references unknown ecoshard %q", id)
		}
	}
	return nil
}

// Limit returns the scenarios matching the given ids, preserving declaration
// order. An unknown id is an error. An empty filter selects every scenario.
func (s *Set) Limit(ids []string) ([]*Scenario, error) {
	if len(ids) == 0 {
		return s.Scenarios, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return nil, fmt.Errorf("limit_to_scenarios references unknown scenario %q", id)
		}
		wanted[id] = struct{}{}
	}
	var out []*Scenario
	for _, sc := range s.Scenarios {
		if _, ok := wanted[sc.ID]; ok {
			out = append(out, sc)
		}
	}
	return out, nil
}
