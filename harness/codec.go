package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/notargets/TopOpt/topopt"
)

// EncodeState serializes a state for transfer out of the worker. Floats are
// written in shortest round-trip form, so DecodeState restores every field
// exactly.
func EncodeState(st topopt.State) ([]byte, error) {
	out, err := yaml.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return out, nil
}

func DecodeState(data []byte) (topopt.State, error) {
	var st topopt.State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return topopt.State{}, fmt.Errorf("decoding state: %w", err)
	}
	return st, nil
}
