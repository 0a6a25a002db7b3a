// Package bim maps cloud BIM object trees onto extracted areas, equipment
// and materials.
package bim

import (
	_ "embed" // default taxonomy
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/taxonomy.yaml
var defaultTaxonomy []byte

// Kind is the entity a classified leaf becomes.
type Kind int

const (
	KindNone Kind = iota
	KindRoom
	KindEquipment
	KindMaterial
)

func (k Kind) String() string {
	switch k {
	case KindRoom:
		return "room"
	case KindEquipment:
		return "equipment"
	case KindMaterial:
		return "material"
	}
	return "none"
}

// Taxonomy holds three disjoint sets of group names. Membership is an exact
// match on the trimmed name.
type Taxonomy struct {
	Rooms     []string `yaml:"rooms"`
	Equipment []string `yaml:"equipment"`
	Materials []string `yaml:"materials"`

	index map[string]Kind
}

// DefaultTaxonomy returns the embedded classification.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return t
}

// LoadTaxonomy reads a YAML taxonomy from path, or returns the default when
// path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file %s: %w", path, err)
	}
	return ParseTaxonomy(data)
}

func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate builds the lookup index and rejects names listed under more than
// one kind.
func (t *Taxonomy) Validate() error {
	index := make(map[string]Kind)
	add := func(names []string, k Kind) error {
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if prev, ok := index[n]; ok && prev != k {
				return fmt.Errorf("taxonomy: %q is listed as both %s and %s", n, prev, k)
			}
			index[n] = k
		}
		return nil
	}
	if err := add(t.Rooms, KindRoom); err != nil {
		return err
	}
	if err := add(t.Equipment, KindEquipment); err != nil {
		return err
	}
	if err := add(t.Materials, KindMaterial); err != nil {
		return err
	}
	t.index = index
	return nil
}

// Classify returns the kind for a group name, KindNone if unlisted. The
// taxonomy must have been validated; an unvalidated one classifies nothing.
func (t *Taxonomy) Classify(group string) Kind {
	return t.index[strings.TrimSpace(group)]
}
