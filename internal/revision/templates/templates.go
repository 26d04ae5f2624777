// Package templates holds the two compiled revision-transform
// templates, embedded at build time and parsed once per process.
package templates

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed 1x_to_20.yaml
var oneXTo20Raw []byte

//go:embed 20_to_12.yaml
var twoZeroTo12Raw []byte

// Template describes one revision transform: the namespace URI and
// schemaVersion rewrite, plus which tag-form elements are omitted
// unless a named feature flag is set.
type Template struct {
	FromNamespaceURI  string            `yaml:"fromNamespaceURI"`
	ToNamespaceURI    string            `yaml:"toNamespaceURI"`
	FromSchemaVersion string            `yaml:"fromSchemaVersion"`
	ToSchemaVersion   string            `yaml:"toSchemaVersion"`
	OmitUnlessFlag    map[string]string `yaml:"omitUnlessFlag"`
}

func parse(raw []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// OneXTo20 parses the 1.x -> 2.0 template resource.
func OneXTo20() (*Template, error) {
	return parse(oneXTo20Raw)
}

// TwoZeroTo12 parses the 2.0 -> 1.2 template resource.
func TwoZeroTo12() (*Template, error) {
	return parse(twoZeroTo12Raw)
}
