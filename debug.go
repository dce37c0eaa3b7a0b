package lattice

import (
	"github.com/rotisserie/eris"

	"github.com/argus-labs/lattice/ecs"
	"github.com/argus-labs/lattice/internal/codec"
)

// SearchJSON runs Search and serializes the results to JSON: one object per matching entity,
// component values keyed by name, the entity handle under "_id". It is the dump format for
// debug tooling built on top of a world.
func (w *World) SearchJSON(params ecs.SearchParam) ([]byte, error) {
	results, err := w.Search(params)
	if err != nil {
		return nil, err
	}

	data, err := codec.Encode(results)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode search results")
	}
	return data, nil
}

// ComponentSchemas returns the JSON schema of every registered component keyed by component
// name, decoded from the registry's layout fingerprints.
func (w *World) ComponentSchemas() (map[string]map[string]any, error) {
	fingerprints := w.State().ComponentSchemas()

	schemas := make(map[string]map[string]any, len(fingerprints))
	for name, fingerprint := range fingerprints {
		schemaMap, err := codec.Decode[map[string]any](fingerprint)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to decode schema for component %q", name)
		}

		// Remove redundant fields.
		delete(schemaMap, "$schema")
		delete(schemaMap, "$id")
		schemas[name] = schemaMap
	}
	return schemas, nil
}
