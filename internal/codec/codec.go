// Package codec is the module's single JSON entry point. Schema fingerprints and debug output
// all round-trip through it so they share one implementation and one error idiom.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Decode unmarshals bz into a fresh value of type T.
func Decode[T any](bz []byte) (T, error) {
	value := new(T)
	if err := json.Unmarshal(bz, value); err != nil {
		return *value, eris.Wrap(err, "failed to decode json")
	}
	return *value, nil
}

// Encode marshals value to JSON.
func Encode(value any) ([]byte, error) {
	bz, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode json")
	}
	return bz, nil
}
