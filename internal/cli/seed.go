package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sharedstore/internal/ir"
)

// SeedFile is the YAML document `open --seed` inserts on first launch.
//
//	objects:
//	  - entity: Folder
//	    attributes:
//	      name: Inbox
type SeedFile struct {
	Objects []SeedObject `yaml:"objects"`
}

// SeedObject is one object to insert.
type SeedObject struct {
	Entity     string         `yaml:"entity"`
	Attributes map[string]any `yaml:"attributes"`
}

// seedRecord is a seed object checked against the model.
type seedRecord struct {
	entity string
	attrs  ir.Object
}

// loadSeedFile reads path and checks every object against model, so a bad
// seed is rejected before the store is touched.
func loadSeedFile(path string, model *ir.Model) ([]seedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var doc SeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	records := make([]seedRecord, 0, len(doc.Objects))
	for i, obj := range doc.Objects {
		desc, ok := model.Entity(obj.Entity)
		if !ok {
			return nil, fmt.Errorf("objects[%d]: unknown entity %q", i, obj.Entity)
		}
		if obj.Attributes == nil {
			obj.Attributes = map[string]any{}
		}
		attrs, err := ir.ObjectFromMap(obj.Attributes)
		if err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		if err := desc.Check(attrs); err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		records = append(records, seedRecord{entity: obj.Entity, attrs: attrs})
	}
	return records, nil
}
