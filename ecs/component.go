package ecs

import (
	"math"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"github.com/argus-labs/lattice/internal/assert"
	"github.com/argus-labs/lattice/internal/codec"
)

// Component is the interface that all components must implement.
// Components are pure data containers that can be attached to entities.
type Component interface { //nolint:iface // We may add more methods in the future.
	// Name returns a unique string identifier for the component type.
	// This should be consistent across program executions.
	Name() string
}

// componentID is a unique identifier for a component type.
// It is used internally to track and manage component types efficiently.
type componentID = uint32

// MaxComponentID is the maximum number of component types that can be registered.
const MaxComponentID = math.MaxUint32 - 1

// componentManager manages component type registration and lookup. Each registered type carries
// its JSON schema so that re-registration under the same name can be checked for layout
// compatibility instead of silently aliasing two different shapes.
type componentManager struct {
	nextID    componentID             // The next available component ID
	catalog   map[string]componentID  // Component name -> component ID
	factories []columnFactory         // Component ID -> column factory
	schemas   [][]byte                // Component ID -> JSON schema fingerprint
	types     map[string]reflect.Type // Component name -> concrete Go type
}

// newComponentManager creates a new component manager.
func newComponentManager() componentManager {
	return componentManager{
		nextID:    0,
		catalog:   make(map[string]componentID),
		factories: make([]columnFactory, 0),
		schemas:   make([][]byte, 0),
		types:     make(map[string]reflect.Type),
	}
}

// registerComponent registers the component type T and returns its ID. Registration is
// idempotent: the same type registered twice returns the existing ID. A type whose schema
// differs from the one already registered under the name fails with
// ErrTypeRegistrationConflict.
func registerComponent[T Component](cm *componentManager) (componentID, error) {
	var zero T
	name := zero.Name()
	if name == "" {
		return 0, eris.New("component name cannot be empty")
	}

	schema, err := serializeComponentSchema(zero)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to derive schema for component %q", name)
	}

	if cid, exists := cm.catalog[name]; exists {
		same, err := isSchemaIdentical(cm.schemas[cid], schema)
		if err != nil {
			return 0, eris.Wrapf(err, "failed to compare schema for component %q", name)
		}
		if !same {
			return 0, eris.Wrapf(ErrTypeRegistrationConflict, "component %q", name)
		}
		return cid, nil
	}

	if cm.nextID > MaxComponentID {
		return 0, eris.New("max number of components exceeded")
	}

	cid := cm.nextID
	cm.catalog[name] = cid
	cm.factories = append(cm.factories, func() abstractColumn {
		col := newColumn[T](cid, name)
		return &col
	})
	cm.schemas = append(cm.schemas, schema)
	cm.types[name] = reflect.TypeFor[T]()
	cm.nextID++
	assert.That(int(cm.nextID) == len(cm.factories), "component id doesn't match number of components")

	return cid, nil
}

// idOf returns a component's ID given a name.
func (cm *componentManager) idOf(name string) (componentID, error) {
	id, exists := cm.catalog[name]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotFound, "component %q", name)
	}
	return id, nil
}

// toSignature converts a list of component values into a signature bitmap. All component types
// must already be registered. Duplicate types collapse into a single bit.
func (cm *componentManager) toSignature(components []Component) (bitmap.Bitmap, error) {
	var signature bitmap.Bitmap
	for _, component := range components {
		cid, err := cm.idOf(component.Name())
		if err != nil {
			return bitmap.Bitmap{}, err
		}
		signature.Set(cid)
	}
	return signature, nil
}

// newColumns builds one fresh column per component in the signature, in ascending component ID
// order. This is the column layout every archetype with this signature shares.
func (cm *componentManager) newColumns(signature bitmap.Bitmap) []abstractColumn {
	columns := make([]abstractColumn, 0, signature.Count())
	signature.Range(func(cid uint32) {
		columns = append(columns, cm.factories[cid]())
	})
	return columns
}

// serializeComponentSchema reflects a JSON schema from a component value. The schema acts as the
// component's layout fingerprint.
func serializeComponentSchema(component Component) ([]byte, error) {
	schema := jsonschema.Reflect(component)
	data, err := codec.Encode(schema)
	if err != nil {
		return nil, eris.Wrap(err, "component must be json serializable")
	}
	return data, nil
}

// isSchemaIdentical reports whether two schema fingerprints describe the same layout.
func isSchemaIdentical(a, b []byte) (bool, error) {
	patch, err := jsondiff.CompareJSON(a, b)
	if err != nil {
		return false, eris.Wrap(err, "failed to diff component schemas")
	}
	return patch.String() == "", nil
}
