package ecs

import (
	"iter"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/lattice/filter"
	"github.com/argus-labs/lattice/lql"
)

// SearchParam describes one debug search. Either Find/Match or Query selects entities by their
// component sets; Where then filters on component values. The where clause uses expr-lang,
// refer to its documentation for details: https://expr-lang.org/docs/getting-started.
type SearchParam struct {
	Find  []string    // List of component names to search for
	Match SearchMatch // How Find is interpreted
	Query string      // Query-language expression; replaces Find/Match when set
	Where string      // Optional expr-language string to filter the results
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchExact matches entities that have exactly the specified components.
	MatchExact SearchMatch = "exact"
	// MatchContains matches entities that contain the specified components, but may have other
	// components as well.
	MatchContains SearchMatch = "contains"
)

// compileWhere compiles the where clause into an expr VM program, or nil when there is none.
func (s *SearchParam) compileWhere() (*vm.Program, error) {
	if len(s.Where) == 0 {
		return nil, nil
	}

	program, err := expr.Compile(s.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return program, nil
}

// validate checks that the parameters name exactly one selection mode.
func (s *SearchParam) validate() error {
	if s.Query != "" {
		if len(s.Find) > 0 || s.Match != "" {
			return eris.New("Query cannot be combined with Find/Match")
		}
		return nil
	}

	if len(s.Find) == 0 {
		return eris.New("component list cannot be empty")
	}
	if s.Match != MatchExact && s.Match != MatchContains {
		return eris.Errorf("invalid `match` value: must be either '%s' or '%s'",
			MatchExact, MatchContains)
	}
	return nil
}

// Search returns the component data of every entity matching the parameters, one map per
// entity keyed by component name, with the entity handle under "_id". It reads whatever is in
// storage right now and needs no registration, which makes it the introspection surface for
// debug endpoints and tests rather than for game logic.
func (w *World) Search(params SearchParam) ([]map[string]any, error) {
	if err := params.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}
	program, err := params.compileWhere()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	var rows iter.Seq2[*archetype, int]
	if params.Query != "" {
		rows, err = w.state.searchByFilter(params.Query)
	} else {
		rows, err = w.state.searchByComponents(params.Find, params.Match)
	}
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for arch, row := range rows {
		entityMap := entityToMap(arch, row)

		if program == nil {
			results = append(results, entityMap)
			continue
		}

		// The entity map doubles as the expression environment, so the where clause sees the
		// component values by name.
		output, runErr := expr.Run(program, entityMap)
		if runErr != nil {
			return nil, eris.Wrap(runErr, "failed to run filter expression")
		}

		// Compilation can't always prove the return type: a clause like health.Value > 200
		// stays untyped until the environment exists, so the result needs a runtime check.
		matched, ok := output.(bool)
		if !ok {
			return nil, eris.New("invalid where clause")
		}
		if matched {
			results = append(results, entityMap)
		}
	}

	return results, nil
}

// searchByComponents yields rows of the archetypes selected by name list and match mode.
func (ws *WorldState) searchByComponents(
	names []string, match SearchMatch,
) (iter.Seq2[*archetype, int], error) {
	var signature bitmap.Bitmap
	for _, name := range names {
		cid, err := ws.components.idOf(name)
		if err != nil {
			return nil, eris.Wrapf(err, "component %s not registered", name)
		}
		signature.Set(cid)
	}

	var archs []*archetype
	switch match {
	case MatchExact:
		if arch := ws.archExact(signature); arch != nil {
			archs = []*archetype{arch}
		}
	case MatchContains:
		archs = ws.archContains(signature)
	}

	return func(yield func(*archetype, int) bool) {
		for _, arch := range archs {
			for row := range arch.rowCount() {
				if !yield(arch, row) {
					return
				}
			}
		}
	}, nil
}

// searchByFilter yields rows matching a compiled query-language expression.
func (ws *WorldState) searchByFilter(query string) (iter.Seq2[*archetype, int], error) {
	f, err := ws.compileFilter(query)
	if err != nil {
		return nil, eris.Wrap(err, "invalid search query")
	}

	return func(yield func(*archetype, int) bool) {
		for _, arch := range ws.archetypes {
			av := archView{ws: ws, arch: arch}
			if !f.MatchesArchetype(av) {
				continue
			}
			for row := range arch.rowCount() {
				if !f.Static() && !f.MatchesRow(rowView{archView: av, row: row}) {
					continue
				}
				if !yield(arch, row) {
					return
				}
			}
		}
	}, nil
}

// ComponentSchemas returns the JSON schema fingerprint of every registered component, keyed by
// component name. The byte slices alias the registry's storage; treat them as read-only.
func (ws *WorldState) ComponentSchemas() map[string][]byte {
	schemas := make(map[string][]byte, len(ws.components.catalog))
	for name, cid := range ws.components.catalog {
		schemas[name] = ws.components.schemas[cid]
	}
	return schemas
}

// entityToMap flattens one row into a map of its components keyed by component name, with the
// entity handle under "_id".
func entityToMap(arch *archetype, row int) map[string]any {
	data := make(map[string]any, arch.compCount+1)
	data["_id"] = arch.entities[row].String()

	for _, col := range arch.columns {
		data[col.name()] = col.getAbstract(row)
	}
	return data
}

// Filter compiles a query-language expression against this world's component registry. It is
// the programmatic twin of SearchParam.Query for callers that want a filter value directly.
func (w *World) Filter(query string) (filter.Filter, error) {
	return w.state.compileFilter(query)
}

func (ws *WorldState) compileFilter(query string) (filter.Filter, error) {
	resolve := func(name string) error {
		_, err := ws.components.idOf(name)
		return err
	}
	return lql.Parse(query, resolve)
}
