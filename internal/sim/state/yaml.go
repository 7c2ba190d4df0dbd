package state

import "gopkg.in/yaml.v3"

// MarshalYAML emits the nested mapping; yaml.v3 sorts mapping keys.
func (s *State) MarshalYAML() (any, error) {
	return s.Map(), nil
}

func (s *State) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	s.ns = parsed.ns
	return nil
}
